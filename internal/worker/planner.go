package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BitrateProber probes a local media file's video bitrate in kbps.
type BitrateProber interface {
	ProbeVideoBitrate(ctx context.Context, input string) (int, error)
}

// Planner turns a probed (or fallback) bitrate into a concrete encode
// target. TargetKbps never fails: probe errors substitute the fallback.
type Planner struct {
	prober       BitrateProber
	retention    float64
	minKbps      int
	fallbackKbps int
	probeTimeout time.Duration
	logger       *zap.Logger
}

// NewPlanner creates a bitrate planner.
func NewPlanner(prober BitrateProber, retention float64, minKbps, fallbackKbps int, probeTimeout time.Duration, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		prober:       prober,
		retention:    retention,
		minKbps:      minKbps,
		fallbackKbps: fallbackKbps,
		probeTimeout: probeTimeout,
		logger:       logger,
	}
}

// TargetKbps computes the encode bitrate for a local file:
// max(floor(original × retention), min clamp).
func (p *Planner) TargetKbps(ctx context.Context, file string) int {
	if p.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.probeTimeout)
		defer cancel()
	}

	original, err := p.prober.ProbeVideoBitrate(ctx, file)
	if err != nil || original <= 0 {
		p.logger.Warn("bitrate probe failed, using fallback",
			zap.String("file", file), zap.Int("fallback_kbps", p.fallbackKbps), zap.Error(err))
		original = p.fallbackKbps
	}

	target := int(float64(original) * p.retention)
	if target < p.minKbps {
		target = p.minKbps
	}
	return target
}
