package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videotranscriber/internal/wav"
)

// writeTestWAV synthesizes a mono 16-bit PCM WAV of the given duration
func writeTestWAV(t *testing.T, path string, sampleRate, durationMS int) {
	t.Helper()
	numBytes := sampleRate * 2 * durationMS / 1000
	data := make([]byte, numBytes)
	for i := range data {
		data[i] = byte(i % 127)
	}
	audio := &wav.Audio{
		SampleRate:    sampleRate,
		Channels:      1,
		BitsPerSample: 16,
		Data:          data,
	}
	require.NoError(t, audio.WriteFile(path))
}

func chunkDurations(t *testing.T, chunks []Chunk) []int {
	t.Helper()
	durations := make([]int, 0, len(chunks))
	for _, chunk := range chunks {
		audio, err := wav.ReadFile(chunk.Path)
		require.NoError(t, err)
		durations = append(durations, audio.DurationMS())
	}
	return durations
}

func TestChunker_Split(t *testing.T) {
	t.Run("should split 90s audio into three 30s chunks", func(t *testing.T) {
		dir := t.TempDir()
		wavPath := filepath.Join(dir, "audio.wav")
		writeTestWAV(t, wavPath, 8000, 90000)

		chunks := NewChunker(zap.NewNop()).Split(wavPath, 30000, filepath.Join(dir, "audio_chunks"))

		require.Len(t, chunks, 3)
		assert.Equal(t, []int{30000, 30000, 30000}, chunkDurations(t, chunks))
	})

	t.Run("should truncate the last chunk of 95s audio at 30s chunks", func(t *testing.T) {
		dir := t.TempDir()
		wavPath := filepath.Join(dir, "audio.wav")
		writeTestWAV(t, wavPath, 8000, 95000)

		chunks := NewChunker(zap.NewNop()).Split(wavPath, 30000, filepath.Join(dir, "audio_chunks"))

		require.Len(t, chunks, 4)
		assert.Equal(t, []int{30000, 30000, 30000, 5000}, chunkDurations(t, chunks))
	})

	t.Run("should produce contiguous non-overlapping offsets in index order", func(t *testing.T) {
		dir := t.TempDir()
		wavPath := filepath.Join(dir, "audio.wav")
		writeTestWAV(t, wavPath, 8000, 70000)

		chunks := NewChunker(zap.NewNop()).Split(wavPath, 20000, filepath.Join(dir, "audio_chunks"))

		require.Len(t, chunks, 4)
		for i, chunk := range chunks {
			assert.Equal(t, i, chunk.Index)
			assert.Equal(t, i*20000, chunk.StartMS)
			if i > 0 {
				assert.Equal(t, chunks[i-1].EndMS, chunk.StartMS, "offsets should be contiguous")
			}
			assert.Equal(t, filepath.Join(dir, "audio_chunks", fmt.Sprintf("chunk_%03d.wav", i)), chunk.Path)
		}
		assert.Equal(t, 70000, chunks[len(chunks)-1].EndMS)
	})

	t.Run("should be idempotent across runs on the same input", func(t *testing.T) {
		dir := t.TempDir()
		wavPath := filepath.Join(dir, "audio.wav")
		writeTestWAV(t, wavPath, 8000, 45000)
		chunker := NewChunker(zap.NewNop())

		first := chunker.Split(wavPath, 10000, filepath.Join(dir, "run1"))
		second := chunker.Split(wavPath, 10000, filepath.Join(dir, "run2"))

		require.Len(t, second, len(first))
		for i := range first {
			a, err := os.ReadFile(first[i].Path)
			require.NoError(t, err)
			b, err := os.ReadFile(second[i].Path)
			require.NoError(t, err)
			assert.Equal(t, a, b, "chunk %d should be bit-identical across runs", i)
		}
	})

	t.Run("should return nil for a missing input file", func(t *testing.T) {
		dir := t.TempDir()

		chunks := NewChunker(zap.NewNop()).Split(filepath.Join(dir, "missing.wav"), 30000, dir)

		assert.Nil(t, chunks)
	})

	t.Run("should return nil for a corrupt input file", func(t *testing.T) {
		dir := t.TempDir()
		wavPath := filepath.Join(dir, "corrupt.wav")
		require.NoError(t, os.WriteFile(wavPath, []byte("not a wav"), 0644))

		chunks := NewChunker(zap.NewNop()).Split(wavPath, 30000, dir)

		assert.Nil(t, chunks)
	})

	t.Run("should return nil for a non-positive chunk length", func(t *testing.T) {
		dir := t.TempDir()
		wavPath := filepath.Join(dir, "audio.wav")
		writeTestWAV(t, wavPath, 8000, 1000)

		chunks := NewChunker(zap.NewNop()).Split(wavPath, 0, dir)

		assert.Nil(t, chunks)
	})

	t.Run("should create the output directory when absent", func(t *testing.T) {
		dir := t.TempDir()
		wavPath := filepath.Join(dir, "audio.wav")
		writeTestWAV(t, wavPath, 8000, 1000)
		outDir := filepath.Join(dir, "nested", "chunks")

		chunks := NewChunker(zap.NewNop()).Split(wavPath, 1000, outDir)

		require.Len(t, chunks, 1)
		assert.DirExists(t, outDir)
	})
}
