package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videotranscriber/internal/chunker"
	"videotranscriber/internal/job"
	"videotranscriber/internal/recognizer"
	"videotranscriber/internal/wav"
)

// fakeExtractor writes a synthesized WAV instead of invoking ffmpeg
type fakeExtractor struct {
	durationMS int
	failFor    map[string]bool
	calls      []string
}

func (f *fakeExtractor) Extract(_ context.Context, videoPath, wavPath string) bool {
	f.calls = append(f.calls, videoPath)
	if f.failFor[videoPath] {
		return false
	}
	numBytes := 8000 * 2 * f.durationMS / 1000
	audio := &wav.Audio{
		SampleRate:    8000,
		Channels:      1,
		BitsPerSample: 16,
		Data:          make([]byte, numBytes),
	}
	return audio.WriteFile(wavPath) == nil
}

// scriptedRecognizer returns canned texts in call order
type scriptedRecognizer struct {
	script []string
	calls  int
}

func (s *scriptedRecognizer) Transcribe(_ context.Context, _, _ string) string {
	if s.calls >= len(s.script) {
		s.calls++
		return ""
	}
	text := s.script[s.calls]
	s.calls++
	return text
}

type progressEvent struct {
	percent float64
	phase   job.Phase
}

func collectProgress(events *[]progressEvent) ProgressFunc {
	return func(percent float64, phase job.Phase, _ string) {
		*events = append(*events, progressEvent{percent: percent, phase: phase})
	}
}

func newTestPipeline(ext AudioExtractor, rec recognizer.Recognizer) *Pipeline {
	logger := zap.NewNop()
	return NewPipeline(ext, chunker.NewChunker(logger), rec, logger)
}

func writeVideoFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))
	return path
}

func TestPipeline_Run(t *testing.T) {
	t.Run("should join recognized segments and drop empty ones", func(t *testing.T) {
		dir := t.TempDir()
		videoPath := writeVideoFixture(t, dir, "talk.mp4")
		outPath := filepath.Join(dir, "talk.txt")
		ext := &fakeExtractor{durationMS: 2000}
		rec := &scriptedRecognizer{script: []string{"hello", ""}}
		p := newTestPipeline(ext, rec)

		transcript, err := p.Run(context.Background(), videoPath, outPath, "en-US", 1, nil)

		require.NoError(t, err)
		assert.Equal(t, "hello", transcript, "empty segment must not leave a stray space")
		content, readErr := os.ReadFile(outPath)
		require.NoError(t, readErr)
		assert.Equal(t, "hello", string(content))
	})

	t.Run("should clean up temp audio chunk files and chunk directory", func(t *testing.T) {
		dir := t.TempDir()
		videoPath := writeVideoFixture(t, dir, "talk.mp4")
		ext := &fakeExtractor{durationMS: 3000}
		rec := &scriptedRecognizer{script: []string{"a", "b", "c"}}
		p := newTestPipeline(ext, rec)

		_, err := p.Run(context.Background(), videoPath, filepath.Join(dir, "out.txt"), "en-US", 1, nil)

		require.NoError(t, err)
		assert.NoFileExists(t, filepath.Join(dir, "temp_audio.wav"))
		assert.NoDirExists(t, filepath.Join(dir, "audio_chunks"))
	})

	t.Run("should report non-decreasing progress ending at exactly 100", func(t *testing.T) {
		dir := t.TempDir()
		videoPath := writeVideoFixture(t, dir, "talk.mp4")
		ext := &fakeExtractor{durationMS: 3000}
		rec := &scriptedRecognizer{script: []string{"a", "b", "c"}}
		p := newTestPipeline(ext, rec)
		var events []progressEvent

		_, err := p.Run(context.Background(), videoPath, filepath.Join(dir, "out.txt"), "en-US", 1, collectProgress(&events))

		require.NoError(t, err)
		require.NotEmpty(t, events)
		for i := 1; i < len(events); i++ {
			assert.GreaterOrEqual(t, events[i].percent, events[i-1].percent,
				"progress must never move backwards")
		}
		assert.Equal(t, float64(100), events[len(events)-1].percent)
	})

	t.Run("should map extraction to 25 and spread transcription to 100", func(t *testing.T) {
		dir := t.TempDir()
		videoPath := writeVideoFixture(t, dir, "talk.mp4")
		ext := &fakeExtractor{durationMS: 3000}
		rec := &scriptedRecognizer{script: []string{"a", "b", "c"}}
		p := newTestPipeline(ext, rec)
		var events []progressEvent

		_, err := p.Run(context.Background(), videoPath, filepath.Join(dir, "out.txt"), "en-US", 1, collectProgress(&events))

		require.NoError(t, err)
		var percents []float64
		for _, e := range events {
			percents = append(percents, e.percent)
		}
		assert.Contains(t, percents, float64(25))
		assert.Contains(t, percents, float64(50))
		assert.Contains(t, percents, float64(75))
		assert.Contains(t, percents, float64(100))
	})

	t.Run("should derive the output path from the video base name", func(t *testing.T) {
		dir := t.TempDir()
		videoPath := writeVideoFixture(t, dir, "lecture.mp4")
		ext := &fakeExtractor{durationMS: 1000}
		rec := &scriptedRecognizer{script: []string{"words"}}
		p := newTestPipeline(ext, rec)

		_, err := p.Run(context.Background(), videoPath, "", "en-US", 1, nil)

		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(dir, "lecture_transcript.txt"))
	})

	t.Run("should return failure string when extraction fails with no sibling audio", func(t *testing.T) {
		dir := t.TempDir()
		videoPath := writeVideoFixture(t, dir, "silent.mp4")
		outPath := filepath.Join(dir, "out.txt")
		ext := &fakeExtractor{durationMS: 1000, failFor: map[string]bool{videoPath: true}}
		rec := &scriptedRecognizer{}
		p := newTestPipeline(ext, rec)

		transcript, err := p.Run(context.Background(), videoPath, outPath, "en-US", 1, nil)

		require.Error(t, err)
		assert.Contains(t, transcript, "failed to extract audio")
		assert.NoFileExists(t, outPath, "no transcript file may be written on extraction failure")
		assert.Equal(t, 0, rec.calls)
	})

	t.Run("should retry extraction from a sibling audio file", func(t *testing.T) {
		dir := t.TempDir()
		videoPath := writeVideoFixture(t, dir, "muted.mp4")
		siblingPath := filepath.Join(dir, "muted.m4a")
		require.NoError(t, os.WriteFile(siblingPath, []byte("audio"), 0644))
		ext := &fakeExtractor{durationMS: 1000, failFor: map[string]bool{videoPath: true}}
		rec := &scriptedRecognizer{script: []string{"rescued"}}
		p := newTestPipeline(ext, rec)

		transcript, err := p.Run(context.Background(), videoPath, filepath.Join(dir, "out.txt"), "en-US", 1, nil)

		require.NoError(t, err)
		assert.Equal(t, "rescued", transcript)
		assert.Equal(t, []string{videoPath, siblingPath}, ext.calls)
	})

	t.Run("should return failure string when chunking yields no segments", func(t *testing.T) {
		dir := t.TempDir()
		videoPath := writeVideoFixture(t, dir, "broken.mp4")
		// Zero-duration audio makes the chunker refuse to split
		ext := &fakeExtractor{durationMS: 0}
		rec := &scriptedRecognizer{}
		p := newTestPipeline(ext, rec)

		transcript, err := p.Run(context.Background(), videoPath, filepath.Join(dir, "out.txt"), "en-US", 1, nil)

		require.Error(t, err)
		assert.Equal(t, "failed to split audio into segments", transcript)
		assert.NoFileExists(t, filepath.Join(dir, "temp_audio.wav"))
	})

	t.Run("should treat an all-empty transcript as a result not an error", func(t *testing.T) {
		dir := t.TempDir()
		videoPath := writeVideoFixture(t, dir, "noise.mp4")
		outPath := filepath.Join(dir, "out.txt")
		ext := &fakeExtractor{durationMS: 2000}
		rec := &scriptedRecognizer{script: []string{"", ""}}
		p := newTestPipeline(ext, rec)
		var events []progressEvent

		transcript, err := p.Run(context.Background(), videoPath, outPath, "en-US", 1, collectProgress(&events))

		require.NoError(t, err)
		assert.Empty(t, transcript)
		assert.NoFileExists(t, outPath, "an empty transcript is not written to disk")
		assert.Equal(t, float64(100), events[len(events)-1].percent)
	})

	t.Run("should stop between segments on cancellation and keep partial text", func(t *testing.T) {
		dir := t.TempDir()
		videoPath := writeVideoFixture(t, dir, "long.mp4")
		ext := &fakeExtractor{durationMS: 3000}
		ctx, cancel := context.WithCancel(context.Background())
		rec := &cancellingRecognizer{cancel: cancel, text: "first"}
		p := newTestPipeline(ext, rec)

		transcript, err := p.Run(ctx, videoPath, filepath.Join(dir, "out.txt"), "en-US", 1, nil)

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "first", transcript)
	})
}

// cancellingRecognizer cancels the run context after its first answer
type cancellingRecognizer struct {
	cancel context.CancelFunc
	text   string
	calls  int
}

func (c *cancellingRecognizer) Transcribe(_ context.Context, _, _ string) string {
	c.calls++
	if c.calls == 1 {
		defer c.cancel()
		return c.text
	}
	return ""
}
