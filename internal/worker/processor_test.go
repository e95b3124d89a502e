package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oneshhh/hirexpert-worker/internal/models"
)

type fakeStore struct {
	mu         sync.Mutex
	pending    []models.Answer
	fetchErr   error
	fetchCalls int
	marked     []uuid.UUID
	succeeded  []uuid.UUID
}

func (s *fakeStore) FetchPendingBatch(ctx context.Context, limit int) ([]models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *fakeStore) MarkCompressed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, id)
	return nil
}

func (s *fakeStore) MarkCompressionSucceeded(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded = append(s.succeeded, id)
	return nil
}

type uploadCall struct {
	key         string
	contentType string
	size        int64
}

type fakeBlobs struct {
	mu          sync.Mutex
	payload     []byte
	downloadErr error
	uploadErr   error
	downloads   []string
	uploads     []uploadCall
}

func (b *fakeBlobs) Download(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downloads = append(b.downloads, key)
	if b.downloadErr != nil {
		return nil, 0, b.downloadErr
	}
	return io.NopCloser(bytes.NewReader(b.payload)), int64(len(b.payload)), nil
}

func (b *fakeBlobs) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return b.uploadErr
	}
	b.uploads = append(b.uploads, uploadCall{key: key, contentType: contentType, size: contentLength})
	return nil
}

type encodeCall struct {
	input     string
	output    string
	videoKbps int
	audioKbps int
}

type fakeEncoder struct {
	mu    sync.Mutex
	err   error
	calls []encodeCall
}

func (e *fakeEncoder) Encode(ctx context.Context, input, output string, videoKbps, audioKbps int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, encodeCall{input: input, output: output, videoKbps: videoKbps, audioKbps: audioKbps})
	if e.err != nil {
		return e.err
	}
	return os.WriteFile(output, []byte("compressed"), 0o644)
}

type fakeProber struct {
	kbps int
	err  error
}

func (p *fakeProber) ProbeVideoBitrate(ctx context.Context, input string) (int, error) {
	return p.kbps, p.err
}

type pipelineFixture struct {
	store     *fakeStore
	blobs     *fakeBlobs
	encoder   *fakeEncoder
	processor *Processor
	scratch   string
}

func newPipelineFixture(t *testing.T, prober BitrateProber) *pipelineFixture {
	t.Helper()
	store := &fakeStore{}
	blobs := &fakeBlobs{payload: []byte("raw video bytes")}
	encoder := &fakeEncoder{}
	scratch := t.TempDir()
	planner := NewPlanner(prober, 0.40, 300, 2000, time.Second, zap.NewNop())
	processor := NewProcessor(store, blobs, encoder, planner, ProcessorConfig{
		RawBucket:        "raw",
		ScratchDir:       scratch,
		AudioBitrateKbps: 64,
	}, zap.NewNop())
	return &pipelineFixture{store: store, blobs: blobs, encoder: encoder, processor: processor, scratch: scratch}
}

func scratchEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestProcessAnswerUnprocessablePath(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"whitespace": "   ",
		"truncated":  "raw/int_42/q1/recording...webm",
	}
	for name, rawPath := range cases {
		t.Run(name, func(t *testing.T) {
			fx := newPipelineFixture(t, &fakeProber{kbps: 3000})
			ans := models.Answer{ID: uuid.New(), RawPath: rawPath}

			outcome := fx.processor.ProcessAnswer(context.Background(), ans)

			assert.Equal(t, OutcomeNoOp, outcome)
			assert.Equal(t, []uuid.UUID{ans.ID}, fx.store.marked)
			assert.Empty(t, fx.blobs.downloads, "no download for unprocessable path")
			assert.Empty(t, fx.blobs.uploads, "no upload for unprocessable path")
			assert.Empty(t, scratchEntries(t, fx.scratch))
		})
	}
}

func TestProcessAnswerDownloadError(t *testing.T) {
	fx := newPipelineFixture(t, &fakeProber{kbps: 3000})
	fx.blobs.downloadErr = errors.New("object not found")
	ans := models.Answer{ID: uuid.New(), RawPath: "raw/z.webm"}

	outcome := fx.processor.ProcessAnswer(context.Background(), ans)

	assert.Equal(t, OutcomeNoOp, outcome)
	assert.Equal(t, []uuid.UUID{ans.ID}, fx.store.marked)
	assert.Empty(t, fx.blobs.uploads)
	assert.Empty(t, fx.encoder.calls)
	assert.Empty(t, scratchEntries(t, fx.scratch), "no scratch files after download failure")
}

func TestProcessAnswerEmptyPayload(t *testing.T) {
	fx := newPipelineFixture(t, &fakeProber{kbps: 3000})
	fx.blobs.payload = nil
	ans := models.Answer{ID: uuid.New(), RawPath: "raw/z.webm"}

	outcome := fx.processor.ProcessAnswer(context.Background(), ans)

	assert.Equal(t, OutcomeNoOp, outcome)
	assert.Equal(t, []uuid.UUID{ans.ID}, fx.store.marked)
	assert.Empty(t, fx.encoder.calls)
	assert.Empty(t, scratchEntries(t, fx.scratch))
}

func TestProcessAnswerMarkedBeforeTranscode(t *testing.T) {
	fx := newPipelineFixture(t, &fakeProber{kbps: 3000})
	fx.encoder.err = errors.New("encoder exploded")
	ans := models.Answer{ID: uuid.New(), RawPath: "raw/x/y.webm"}

	outcome := fx.processor.ProcessAnswer(context.Background(), ans)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, []uuid.UUID{ans.ID}, fx.store.marked, "marked before the failing transcode")
	assert.Empty(t, fx.store.succeeded)
	assert.Empty(t, fx.blobs.uploads)
	assert.Empty(t, scratchEntries(t, fx.scratch), "scratch cleaned after transcode failure")
}

func TestProcessAnswerUploadFailureStaysMarked(t *testing.T) {
	fx := newPipelineFixture(t, &fakeProber{kbps: 3000})
	fx.blobs.uploadErr = errors.New("bucket unreachable")
	ans := models.Answer{ID: uuid.New(), RawPath: "raw/x/y.webm"}

	outcome := fx.processor.ProcessAnswer(context.Background(), ans)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, []uuid.UUID{ans.ID}, fx.store.marked)
	assert.Empty(t, fx.store.succeeded)
	assert.Empty(t, scratchEntries(t, fx.scratch))
}

func TestProcessAnswerSuccess(t *testing.T) {
	fx := newPipelineFixture(t, &fakeProber{kbps: 3000})
	ans := models.Answer{ID: uuid.New(), RawPath: "raw/x/y.webm"}

	outcome := fx.processor.ProcessAnswer(context.Background(), ans)

	assert.Equal(t, OutcomeCompressed, outcome)
	assert.Equal(t, []string{"x/y.webm"}, fx.blobs.downloads, "bucket prefix stripped from stored path")

	require.Len(t, fx.encoder.calls, 1)
	call := fx.encoder.calls[0]
	assert.Equal(t, 1200, call.videoKbps, "40% of 3000 kbps")
	assert.Equal(t, 64, call.audioKbps)

	require.Len(t, fx.blobs.uploads, 1)
	up := fx.blobs.uploads[0]
	assert.Equal(t, "x/y.webm", up.key, "compressed file replaces the original object")
	assert.Equal(t, "video/mp4", up.contentType)
	assert.Positive(t, up.size)

	assert.Equal(t, []uuid.UUID{ans.ID}, fx.store.marked)
	assert.Equal(t, []uuid.UUID{ans.ID}, fx.store.succeeded)
	assert.Empty(t, scratchEntries(t, fx.scratch))
}

func TestRunBatchFetchErrorTouchesNothing(t *testing.T) {
	fx := newPipelineFixture(t, &fakeProber{kbps: 3000})
	fx.store.fetchErr = errors.New("connection refused")

	_, err := fx.processor.RunBatch(context.Background(), 30)

	require.Error(t, err)
	assert.Empty(t, fx.store.marked)
	assert.Empty(t, fx.blobs.downloads)
}

func TestRunBatchOneBadItemDoesNotAbortTheRest(t *testing.T) {
	fx := newPipelineFixture(t, &fakeProber{kbps: 3000})
	bad := models.Answer{ID: uuid.New(), RawPath: ""}
	good := models.Answer{ID: uuid.New(), RawPath: "raw/x/y.webm"}
	fx.store.pending = []models.Answer{bad, good}

	stats, err := fx.processor.RunBatch(context.Background(), 30)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.NoOps)
	assert.Equal(t, 1, stats.Compressed)
	assert.ElementsMatch(t, []uuid.UUID{bad.ID, good.ID}, fx.store.marked)
}

func TestRunBatchRespectsLimit(t *testing.T) {
	fx := newPipelineFixture(t, &fakeProber{kbps: 3000})
	for i := 0; i < 5; i++ {
		fx.store.pending = append(fx.store.pending, models.Answer{ID: uuid.New(), RawPath: ""})
	}

	stats, err := fx.processor.RunBatch(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.NoOps)
	assert.Len(t, fx.store.marked, 2)
}
