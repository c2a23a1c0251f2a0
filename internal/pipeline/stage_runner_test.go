package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denlifik/tg-ytarchiver/internal/feed"
	"github.com/denlifik/tg-ytarchiver/internal/fetch"
	"github.com/denlifik/tg-ytarchiver/internal/segment"
)

// --- fakes ---

type fakeFetcher struct {
	fail  bool
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, req fetch.Request) (string, error) {
	f.calls++
	if f.fail {
		return "", fmt.Errorf("fetch refused")
	}
	path := filepath.Join(req.OutputDir, req.VideoID+"_full.mp4")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeSplitter struct {
	chunks int
	fail   bool
}

func (s *fakeSplitter) Split(_ context.Context, input, outDir, videoID string, _ time.Duration) ([]segment.Chunk, error) {
	if s.fail {
		return nil, fmt.Errorf("segmenter exploded")
	}
	out := make([]segment.Chunk, 0, s.chunks)
	for i := 0; i < s.chunks; i++ {
		path := filepath.Join(outDir, fmt.Sprintf("%s_part_%03d.mp4", videoID, i))
		if err := os.WriteFile(path, []byte("chunk"), 0o644); err != nil {
			return nil, err
		}
		out = append(out, segment.Chunk{Seq: i, Path: path})
	}
	return out, nil
}

type fakeProber struct {
	// durations by raw segment index; missing = probe error
	durations map[int]float64
}

func (p *fakeProber) Duration(_ context.Context, path string) (float64, error) {
	base := filepath.Base(path)
	seq, err := strconv.Atoi(strings.TrimSuffix(base[len(base)-7:], ".mp4"))
	if err != nil {
		return 0, err
	}
	d, ok := p.durations[seq]
	if !ok {
		return 0, fmt.Errorf("probe failed")
	}
	return d, nil
}

type fakeUploader struct {
	failSeqs map[int]bool // 0-based upload attempt index -> fail
	attempts int
	captions []string
}

func (u *fakeUploader) UploadVideo(_ context.Context, path, caption string) (string, error) {
	attempt := u.attempts
	u.attempts++
	if u.failSeqs[attempt] {
		return "", fmt.Errorf("telegram said no")
	}
	u.captions = append(u.captions, caption)
	return fmt.Sprintf("file-%d", attempt), nil
}

type fakeEgress struct {
	endpoint string
	fail     bool
}

func (e *fakeEgress) Acquire(context.Context) (string, error) {
	if e.fail {
		return "", fmt.Errorf("no working proxy available")
	}
	return e.endpoint, nil
}

type fakeSpoiler struct{ answer string }

func (s *fakeSpoiler) Locate(_ context.Context, _, _, _ string) string { return s.answer }

func allValid(n int) map[int]float64 {
	m := make(map[int]float64, n)
	for i := 0; i < n; i++ {
		m[i] = 600
	}
	return m
}

func newRunner(t *testing.T, chunks int) (*StageRunner, *fakeUploader) {
	t.Helper()
	up := &fakeUploader{failSeqs: map[int]bool{}}
	return &StageRunner{
		Fetcher:       &fakeFetcher{},
		Splitter:      &fakeSplitter{chunks: chunks},
		Prober:        &fakeProber{durations: allValid(chunks)},
		Uploader:      up,
		WorkDir:       t.TempDir(),
		MaxHeight:     480,
		FetchTimeout:  time.Second,
		ChunkDuration: 600 * time.Second,
	}, up
}

func workDirFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

var testCand = feed.Candidate{ID: "vid123", Title: "Episode 42"}

// --- tests ---

func TestProcessHappyPath(t *testing.T) {
	r, up := newRunner(t, 3)

	result, err := r.Process(context.Background(), RunEnv{RunID: "run"}, testCand)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "vid123", result.ID)
	assert.Equal(t, "Episode 42", result.Title)
	require.Len(t, result.Parts, 3)
	for i, p := range result.Parts {
		assert.Equal(t, i+1, p.PartNum)
		assert.NotEmpty(t, p.FileID)
	}
	assert.Equal(t, []string{
		"Episode 42 — Part 1",
		"Episode 42 — Part 2",
		"Episode 42 — Part 3",
	}, up.captions)
	assert.Empty(t, workDirFiles(t, r.WorkDir), "working dir must be drained")
}

func TestProcessSkippedChunkRenumbersContiguously(t *testing.T) {
	r, up := newRunner(t, 3)
	// middle chunk probes at zero duration
	r.Prober = &fakeProber{durations: map[int]float64{0: 600, 1: 0, 2: 432.5}}

	result, err := r.Process(context.Background(), RunEnv{}, testCand)
	require.NoError(t, err)

	require.Len(t, result.Parts, 2)
	assert.Equal(t, 1, result.Parts[0].PartNum)
	assert.Equal(t, 2, result.Parts[1].PartNum)
	assert.Equal(t, []string{"Episode 42 — Part 1", "Episode 42 — Part 2"}, up.captions)
	assert.Empty(t, workDirFiles(t, r.WorkDir))
}

func TestProcessUploadFailureSkipsChunk(t *testing.T) {
	r, _ := newRunner(t, 3)
	r.Uploader = &fakeUploader{failSeqs: map[int]bool{1: true}}

	result, err := r.Process(context.Background(), RunEnv{}, testCand)
	require.NoError(t, err)
	require.Len(t, result.Parts, 2)
	assert.Equal(t, 1, result.Parts[0].PartNum)
	assert.Equal(t, 2, result.Parts[1].PartNum)
	assert.Empty(t, workDirFiles(t, r.WorkDir))
}

func TestProcessFetchFailureLeavesNoTrace(t *testing.T) {
	r, up := newRunner(t, 3)
	r.Fetcher = &fakeFetcher{fail: true}

	result, err := r.Process(context.Background(), RunEnv{}, testCand)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Zero(t, up.attempts)
	assert.Empty(t, workDirFiles(t, r.WorkDir))
}

func TestProcessSegmentFailureCleansDownload(t *testing.T) {
	r, _ := newRunner(t, 0)
	r.Splitter = &fakeSplitter{fail: true}

	result, err := r.Process(context.Background(), RunEnv{}, testCand)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, workDirFiles(t, r.WorkDir), "failed segmentation must not leak the download")
}

func TestProcessZeroValidChunksIsNoResult(t *testing.T) {
	r, _ := newRunner(t, 2)
	r.Prober = &fakeProber{durations: map[int]float64{0: 0, 1: -1}}

	result, err := r.Process(context.Background(), RunEnv{}, testCand)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, workDirFiles(t, r.WorkDir))
}

func TestProcessEgressFailureAbortsVideo(t *testing.T) {
	r, up := newRunner(t, 3)
	r.Egress = &fakeEgress{fail: true}

	result, err := r.Process(context.Background(), RunEnv{}, testCand)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Zero(t, up.attempts)
}

func TestProcessSpoilerTimestampIsRecorded(t *testing.T) {
	r, _ := newRunner(t, 1)
	r.Spoiler = &fakeSpoiler{answer: "05:30"}

	result, err := r.Process(context.Background(), RunEnv{}, testCand)
	require.NoError(t, err)
	assert.Equal(t, "05:30", result.SpoilerSafeFrom)
}

func TestProcessSpoilerFailureNeverGates(t *testing.T) {
	r, _ := newRunner(t, 1)
	r.Spoiler = &fakeSpoiler{answer: ""}

	result, err := r.Process(context.Background(), RunEnv{}, testCand)
	require.NoError(t, err)
	assert.Empty(t, result.SpoilerSafeFrom)
	require.Len(t, result.Parts, 1)
}

func TestProcessRecoversFromStagePanic(t *testing.T) {
	r, _ := newRunner(t, 1)
	r.Prober = panickyProber{}

	result, err := r.Process(context.Background(), RunEnv{}, testCand)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "stage panic")
	assert.Empty(t, workDirFiles(t, r.WorkDir))
}

type panickyProber struct{}

func (panickyProber) Duration(context.Context, string) (float64, error) { panic("probe blew up") }
