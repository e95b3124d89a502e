package transcoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVideoBitrate(t *testing.T) {
	out := []byte(`{"streams":[{"codec_type":"audio","bit_rate":"64000"},{"codec_type":"video","bit_rate":"3000000"}]}`)
	kbps, err := parseVideoBitrate(out)
	require.NoError(t, err)
	assert.Equal(t, 3000, kbps)
}

func TestParseVideoBitrateErrors(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{name: "no video stream", out: `{"streams":[{"codec_type":"audio","bit_rate":"64000"}]}`},
		{name: "missing bit_rate", out: `{"streams":[{"codec_type":"video"}]}`},
		{name: "non-numeric bit_rate", out: `{"streams":[{"codec_type":"video","bit_rate":"N/A"}]}`},
		{name: "zero bit_rate", out: `{"streams":[{"codec_type":"video","bit_rate":"0"}]}`},
		{name: "invalid json", out: `not json`},
		{name: "empty", out: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseVideoBitrate([]byte(tt.out))
			assert.Error(t, err)
		})
	}
}
