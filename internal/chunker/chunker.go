package chunker

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"videotranscriber/internal/wav"
)

// Chunk is one fixed-length slice of the full audio track, transcribed
// independently. Chunks are zero-indexed and ordered; the pipeline owns
// their files and deletes each one right after transcription.
type Chunk struct {
	Path    string
	Index   int
	StartMS int
	EndMS   int
}

// Chunker splits a WAV file into fixed-length WAV segment files
type Chunker struct {
	logger *zap.Logger
}

// NewChunker creates a Chunker
func NewChunker(logger *zap.Logger) *Chunker {
	return &Chunker{logger: logger}
}

// Split cuts wavPath into ceil(D/chunkMS) segments of chunkMS milliseconds
// (the last truncated to the remaining length) written into outputDir as
// chunk_000.wav, chunk_001.wav, ... It returns the chunks in index order,
// or nil on any failure - partial chunk sets are never returned.
func (c *Chunker) Split(wavPath string, chunkMS int, outputDir string) []Chunk {
	if chunkMS <= 0 {
		c.logger.Error("invalid chunk length", zap.Int("chunk_ms", chunkMS))
		return nil
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		c.logger.Error("failed to create chunk directory",
			zap.String("dir", outputDir),
			zap.Error(err))
		return nil
	}

	c.logger.Info("loading audio file for chunking", zap.String("path", wavPath))

	audio, err := wav.ReadFile(wavPath)
	if err != nil {
		c.logger.Error("failed to load audio file", zap.Error(err))
		return nil
	}

	durationMS := audio.DurationMS()
	if durationMS == 0 {
		c.logger.Error("audio file has zero duration", zap.String("path", wavPath))
		return nil
	}

	numChunks := (durationMS + chunkMS - 1) / chunkMS
	c.logger.Info("splitting audio into segments",
		zap.Int("duration_ms", durationMS),
		zap.Int("chunk_ms", chunkMS),
		zap.Int("num_chunks", numChunks))

	chunks := make([]Chunk, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		startMS := i * chunkMS
		endMS := (i + 1) * chunkMS
		if endMS > durationMS {
			endMS = durationMS
		}

		chunkPath := filepath.Join(outputDir, fmt.Sprintf("chunk_%03d.wav", i))
		slice := audio.SliceMS(startMS, endMS)
		if err := slice.WriteFile(chunkPath); err != nil {
			c.logger.Error("failed to write chunk, aborting split",
				zap.Int("index", i),
				zap.Error(err))
			return nil
		}

		chunks = append(chunks, Chunk{
			Path:    chunkPath,
			Index:   i,
			StartMS: startMS,
			EndMS:   endMS,
		})
	}

	c.logger.Info("audio split into segments", zap.Int("count", len(chunks)))
	return chunks
}
