package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oneshhh/hirexpert-worker/internal/models"
	"github.com/oneshhh/hirexpert-worker/pkg/storage"
)

// truncationMarker appears in raw_path values that were cut off before
// being persisted; such rows can never be downloaded and are completed
// without media work.
const truncationMarker = "..."

// AnswerStore is the subset of the answers repository the pipeline needs.
type AnswerStore interface {
	FetchPendingBatch(ctx context.Context, limit int) ([]models.Answer, error)
	MarkCompressed(ctx context.Context, id uuid.UUID) error
	MarkCompressionSucceeded(ctx context.Context, id uuid.UUID) error
}

// BlobStore is the object-storage surface the pipeline needs.
type BlobStore interface {
	Download(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error)
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64) error
}

// Encoder re-encodes a local media file at a target bitrate pair.
type Encoder interface {
	Encode(ctx context.Context, input, output string, videoKbps, audioKbps int) error
}

// Outcome classifies how one answer's pipeline pass ended.
type Outcome int

const (
	// OutcomeCompressed: the compressed artifact replaced the original.
	OutcomeCompressed Outcome = iota
	// OutcomeNoOp: the answer was marked done without media work
	// (invalid path, missing blob, empty payload).
	OutcomeNoOp
	// OutcomeFailed: transcode or upload failed after marking; the answer
	// stays done and is never retried.
	OutcomeFailed
)

// Stats summarizes one batch pass.
type Stats struct {
	Compressed int `json:"compressed"`
	NoOps      int `json:"no_ops"`
	Failed     int `json:"failed"`
}

// ProcessorConfig holds per-item pipeline settings.
type ProcessorConfig struct {
	RawBucket        string
	ScratchDir       string
	AudioBitrateKbps int
	DownloadTimeout  time.Duration
	UploadTimeout    time.Duration
	TranscodeTimeout time.Duration
}

// Processor runs the per-answer compression pipeline: validate the stored
// path, download the blob, mark the row compressed, plan the bitrate,
// transcode, overwrite the original object, clean up scratch files. An
// answer is marked compressed as soon as the raw file lands locally, so a
// slow or failing encode is never re-downloaded on the next tick.
type Processor struct {
	store   AnswerStore
	blobs   BlobStore
	encoder Encoder
	planner *Planner
	cfg     ProcessorConfig
	logger  *zap.Logger
}

// NewProcessor creates a compression pipeline processor.
func NewProcessor(store AnswerStore, blobs BlobStore, encoder Encoder, planner *Planner, cfg ProcessorConfig, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RawBucket == "" {
		cfg.RawBucket = "raw"
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if cfg.AudioBitrateKbps <= 0 {
		cfg.AudioBitrateKbps = 64
	}
	return &Processor{
		store:   store,
		blobs:   blobs,
		encoder: encoder,
		planner: planner,
		cfg:     cfg,
		logger:  logger,
	}
}

// RunBatch fetches and processes one batch of pending answers. A store
// error before any item is touched aborts the whole pass; per-item
// failures are absorbed so one bad answer cannot block the rest.
func (p *Processor) RunBatch(ctx context.Context, limit int) (Stats, error) {
	var stats Stats
	batch, err := p.store.FetchPendingBatch(ctx, limit)
	if err != nil {
		return stats, fmt.Errorf("fetch pending batch: %w", err)
	}
	if len(batch) == 0 {
		p.logger.Debug("no pending answers")
		return stats, nil
	}

	p.logger.Info("processing pending answers", zap.Int("count", len(batch)))
	for _, ans := range batch {
		switch p.ProcessAnswer(ctx, ans) {
		case OutcomeCompressed:
			stats.Compressed++
		case OutcomeNoOp:
			stats.NoOps++
		case OutcomeFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// ProcessAnswer runs one answer through the pipeline and reports how the
// pass ended. Scratch files are removed on every exit path.
func (p *Processor) ProcessAnswer(ctx context.Context, ans models.Answer) Outcome {
	log := p.logger.With(zap.String("answer_id", ans.ID.String()))

	rawPath := strings.TrimSpace(ans.RawPath)
	if rawPath == "" || strings.Contains(rawPath, truncationMarker) {
		log.Warn("unprocessable raw_path, completing without media work", zap.String("raw_path", ans.RawPath))
		p.markCompressed(ctx, ans.ID, log)
		return OutcomeNoOp
	}

	key := storage.NormalizeKey(p.cfg.RawBucket, rawPath)
	localRaw := filepath.Join(p.cfg.ScratchDir, "raw_"+ans.ID.String()+storage.ExtensionForKey(key))
	localOut := filepath.Join(p.cfg.ScratchDir, "compressed_"+ans.ID.String()+".mp4")
	defer p.cleanup(log, localRaw, localOut)

	switch p.fetch(ctx, key, localRaw, log) {
	case fetchNoop:
		// Missing or empty blob: complete the answer so it cannot poison
		// the batch forever.
		p.markCompressed(ctx, ans.ID, log)
		return OutcomeNoOp
	case fetchAbort:
		// Local scratch failure: leave the row pending for the next tick.
		return OutcomeFailed
	}
	log.Info("raw media downloaded", zap.String("key", key), zap.String("file", localRaw))

	// Mark done now, before the transcode. If the encode is slow or fails,
	// the next tick must not re-download the same answer.
	p.markCompressed(ctx, ans.ID, log)

	target := p.planner.TargetKbps(ctx, localRaw)
	log.Info("target bitrate planned", zap.Int("target_kbps", target))

	if err := p.transcode(ctx, localRaw, localOut, target); err != nil {
		log.Error("transcode failed, abandoning answer", zap.Error(err))
		return OutcomeFailed
	}
	log.Info("transcode complete", zap.String("file", localOut))

	if err := p.upload(ctx, key, localOut); err != nil {
		log.Error("upload failed, abandoning answer", zap.String("key", key), zap.Error(err))
		return OutcomeFailed
	}
	log.Info("original replaced with compressed media", zap.String("key", key))

	if err := p.store.MarkCompressionSucceeded(ctx, ans.ID); err != nil {
		log.Warn("failed to record compression success", zap.Error(err))
	}
	return OutcomeCompressed
}

type fetchResult int

const (
	fetchOK fetchResult = iota
	// fetchNoop: download failed or the payload was empty; complete the
	// answer without media work.
	fetchNoop
	// fetchAbort: local disk failure; do not mark, retry next tick.
	fetchAbort
)

// fetch downloads the blob at key into dest.
func (p *Processor) fetch(ctx context.Context, key, dest string, log *zap.Logger) fetchResult {
	if p.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.DownloadTimeout)
		defer cancel()
	}

	body, _, err := p.blobs.Download(ctx, p.cfg.RawBucket, key)
	if err != nil {
		log.Warn("download failed, completing without media work", zap.String("key", key), zap.Error(err))
		return fetchNoop
	}
	defer body.Close()

	if err := os.MkdirAll(p.cfg.ScratchDir, 0o755); err != nil {
		log.Error("create scratch dir failed", zap.String("dir", p.cfg.ScratchDir), zap.Error(err))
		return fetchAbort
	}
	f, err := os.Create(dest)
	if err != nil {
		log.Error("create scratch file failed", zap.String("file", dest), zap.Error(err))
		return fetchAbort
	}
	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		log.Error("write scratch file failed", zap.String("file", dest), zap.Error(err))
		return fetchAbort
	}
	if n == 0 {
		log.Warn("downloaded payload is empty, completing without media work", zap.String("key", key))
		return fetchNoop
	}
	return fetchOK
}

func (p *Processor) transcode(ctx context.Context, input, output string, videoKbps int) error {
	if p.cfg.TranscodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TranscodeTimeout)
		defer cancel()
	}
	return p.encoder.Encode(ctx, input, output, videoKbps, p.cfg.AudioBitrateKbps)
}

// upload overwrites the original object with the compressed file.
func (p *Processor) upload(ctx context.Context, key, file string) error {
	if p.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.UploadTimeout)
		defer cancel()
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open compressed file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat compressed file: %w", err)
	}
	return p.blobs.Upload(ctx, p.cfg.RawBucket, key, storage.ContentTypeMP4, f, info.Size())
}

// markCompressed flips is_compressed. A store error here is logged and
// swallowed: the pipeline keeps going either way.
func (p *Processor) markCompressed(ctx context.Context, id uuid.UUID, log *zap.Logger) {
	if err := p.store.MarkCompressed(ctx, id); err != nil {
		log.Warn("failed to mark answer compressed", zap.Error(err))
		return
	}
	log.Info("answer marked compressed")
}

// cleanup removes scratch files best-effort.
func (p *Processor) cleanup(log *zap.Logger, files ...string) {
	for _, file := range files {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			log.Warn("could not delete scratch file", zap.String("file", file), zap.Error(err))
		}
	}
}
