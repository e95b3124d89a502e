package transcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Engine wraps the local ffmpeg and ffprobe binaries. Encode and probe
// failures are ordinary errors; they never take the process down.
type Engine struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

// NewEngine resolves both binaries up front. A missing binary is a startup
// error rather than something discovered mid-batch.
func NewEngine(ffmpegPath, ffprobePath string, logger *zap.Logger) (*Engine, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	resolvedFFmpeg, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg binary %q not found: %w", ffmpegPath, err)
	}
	resolvedFFprobe, err := exec.LookPath(ffprobePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe binary %q not found: %w", ffprobePath, err)
	}

	logger.Info("transcoding engine ready", zap.String("ffmpeg", resolvedFFmpeg), zap.String("ffprobe", resolvedFFprobe))
	return &Engine{
		ffmpegPath:  resolvedFFmpeg,
		ffprobePath: resolvedFFprobe,
		logger:      logger,
	}, nil
}

// ProbeVideoBitrate returns the first video stream's bitrate in kbps.
func (e *Engine) ProbeVideoBitrate(ctx context.Context, input string) (int, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "stream=codec_type,bit_rate",
		"-of", "json",
		input,
	}
	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseVideoBitrate(output)
}

// parseVideoBitrate extracts the video stream bitrate from ffprobe JSON.
func parseVideoBitrate(output []byte) (int, error) {
	var res struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			BitRate   string `json:"bit_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &res); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	for _, s := range res.Streams {
		if s.CodecType != "video" {
			continue
		}
		bps, err := strconv.Atoi(s.BitRate)
		if err != nil || bps <= 0 {
			return 0, fmt.Errorf("video stream has no usable bit_rate (%q)", s.BitRate)
		}
		return bps / 1000, nil
	}
	return 0, fmt.Errorf("no video stream found")
}

// Encode re-encodes input to an MP4 at the target bitrate pair
// (H.264 video, AAC audio). The output file is overwritten if present.
func (e *Engine) Encode(ctx context.Context, input, output string, videoKbps, audioKbps int) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-c:v", "libx264",
		"-b:v", fmt.Sprintf("%dk", videoKbps),
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", audioKbps),
		output,
	}
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
