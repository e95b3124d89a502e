package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTargetKbps(t *testing.T) {
	tests := []struct {
		name     string
		probed   int
		probeErr error
		want     int
	}{
		{name: "retention applied", probed: 3000, want: 1200},
		{name: "probe error falls back", probeErr: errors.New("no bitrate"), want: 800},
		{name: "zero bitrate falls back", probed: 0, want: 800},
		{name: "negative bitrate falls back", probed: -10, want: 800},
		{name: "floor clamp", probed: 400, want: 300},
		{name: "exactly at clamp", probed: 750, want: 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlanner(&fakeProber{kbps: tt.probed, err: tt.probeErr}, 0.40, 300, 2000, time.Second, zap.NewNop())
			assert.Equal(t, tt.want, p.TargetKbps(context.Background(), "in.webm"))
		})
	}
}

func TestTargetKbpsNeverBelowClampForFallback(t *testing.T) {
	// Even a pathological fallback below the clamp is floored.
	p := NewPlanner(&fakeProber{err: errors.New("unreadable")}, 0.40, 300, 100, time.Second, zap.NewNop())
	assert.Equal(t, 300, p.TargetKbps(context.Background(), "in.webm"))
}
