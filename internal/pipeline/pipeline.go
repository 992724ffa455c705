package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"videotranscriber/internal/chunker"
	"videotranscriber/internal/extractor"
	"videotranscriber/internal/job"
	"videotranscriber/internal/performance"
	"videotranscriber/internal/recognizer"
	"videotranscriber/internal/workspace"
)

const (
	tempAudioName = "temp_audio.wav"
	chunkDirName  = "audio_chunks"

	// extractionShare is where extraction ends and transcription begins
	// on the single 0-100 progress scale
	extractionShare = 25.0
)

// ProgressFunc receives progress updates on a single 0-100 scale with a
// phase label and a human-readable detail string. It is invoked
// synchronously from the pipeline's worker, so callers must not block in
// it for long.
type ProgressFunc func(percent float64, phase job.Phase, detail string)

// AudioExtractor produces a PCM WAV track from a video file
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath, wavPath string) bool
}

// AudioChunker splits a WAV file into fixed-length segment files
type AudioChunker interface {
	Split(wavPath string, chunkMS int, outputDir string) []chunker.Chunk
}

// Pipeline runs extraction, chunking, sequential per-segment recognition,
// and transcript assembly for one job. Segments are processed strictly in
// index order: the remote recognition service is the bottleneck and
// rate-sensitive, so sequential calls avoid throttling and keep ordering
// trivially correct.
type Pipeline struct {
	extractor  AudioExtractor
	chunker    AudioChunker
	recognizer recognizer.Recognizer
	monitor    *performance.Monitor
	logger     *zap.Logger
}

// NewPipeline creates a Pipeline from its components
func NewPipeline(ext AudioExtractor, chk AudioChunker, rec recognizer.Recognizer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		extractor:  ext,
		chunker:    chk,
		recognizer: rec,
		monitor:    performance.NewMonitor(logger),
		logger:     logger,
	}
}

// Run transcribes the video at videoPath and returns the transcript text.
// Fatal failures (no audio producible, chunking failure) return a
// descriptive failure string together with a non-nil error; per-segment
// recognition failures contribute empty strings and never abort the run.
// Progress reported through onProgress is non-decreasing, with extraction
// mapped to [0,25] and transcription to [25,100].
func (p *Pipeline) Run(ctx context.Context, videoPath, outputTextPath, language string, chunkSec int, onProgress ProgressFunc) (string, error) {
	videoDir := filepath.Dir(videoPath)
	if outputTextPath == "" {
		base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
		outputTextPath = filepath.Join(videoDir, base+"_transcript.txt")
	}

	report := func(percent float64, phase job.Phase, detail string) {
		if onProgress != nil {
			onProgress(percent, phase, detail)
		}
	}

	report(0, job.PhaseExtracting, "extracting audio")

	tempWavPath := filepath.Join(videoDir, tempAudioName)
	if !p.extractor.Extract(ctx, videoPath, tempWavPath) {
		// One more fallback before giving up: a sibling audio file at
		// the video's base path may carry the track.
		sibling := extractor.FindSiblingAudio(videoPath)
		if sibling == "" {
			msg := fmt.Sprintf("failed to extract audio from %s and no separate audio file was found", filepath.Base(videoPath))
			p.logger.Error("audio extraction failed", zap.String("video", videoPath))
			return msg, fmt.Errorf("audio extraction failed for %s", videoPath)
		}

		p.logger.Info("retrying extraction with separate audio file", zap.String("audio", sibling))
		if !p.extractor.Extract(ctx, sibling, tempWavPath) {
			msg := fmt.Sprintf("failed to extract audio from %s and from the separate audio file %s", filepath.Base(videoPath), filepath.Base(sibling))
			p.logger.Error("audio extraction failed for video and sibling audio",
				zap.String("video", videoPath),
				zap.String("audio", sibling))
			return msg, fmt.Errorf("audio extraction failed for %s and %s", videoPath, sibling)
		}
	}

	report(extractionShare, job.PhaseExtracting, "audio extracted")

	chunkDir := filepath.Join(videoDir, chunkDirName)
	chunks := p.chunker.Split(tempWavPath, chunkSec*1000, chunkDir)
	if len(chunks) == 0 {
		workspace.TryCleanup(p.logger, "chunk directory", func() error { return os.Remove(chunkDir) })
		workspace.TryCleanup(p.logger, "temp audio file", func() error { return os.Remove(tempWavPath) })
		msg := "failed to split audio into segments"
		return msg, fmt.Errorf("chunking produced no segments for %s", tempWavPath)
	}

	p.logger.Info("transcribing audio segments",
		zap.Int("count", len(chunks)),
		zap.String("language", language))

	transcript, cancelled := p.transcribeChunks(ctx, chunks, language, report)

	workspace.TryCleanup(p.logger, "chunk directory", func() error { return os.Remove(chunkDir) })
	workspace.TryCleanup(p.logger, "temp audio file", func() error { return os.Remove(tempWavPath) })

	p.logger.Info(p.monitor.GetSummary())

	if cancelled {
		p.logger.Info("transcription cancelled, returning partial transcript",
			zap.Int("characters", len(transcript)))
		return transcript, ctx.Err()
	}

	if transcript == "" {
		p.logger.Warn("no speech was recognized in any segment")
	}

	if transcript != "" {
		report(100, job.PhaseWriting, "writing transcript")
		if err := os.WriteFile(outputTextPath, []byte(transcript), 0644); err != nil {
			// Write failures do not fail the job; the in-memory
			// transcript is still the result.
			p.logger.Error("failed to save transcript file",
				zap.String("path", outputTextPath),
				zap.Error(err))
		} else {
			p.logger.Info("transcript saved", zap.String("path", outputTextPath))
		}
	}

	report(100, job.PhaseDone, "transcription complete")
	return transcript, nil
}

// transcribeChunks runs the sequential per-segment recognition loop and
// joins the non-empty results with single spaces. Each chunk file is
// deleted right after its text is obtained, success or not; chunks are
// never retried or re-read.
func (p *Pipeline) transcribeChunks(ctx context.Context, chunks []chunker.Chunk, language string, report ProgressFunc) (string, bool) {
	total := len(chunks)
	var texts []string

	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
			p.logger.Info("cancellation requested, stopping segment loop",
				zap.Int("completed", i),
				zap.Int("total", total))
			return strings.Join(texts, " "), true
		default:
		}

		p.logger.Debug("processing segment",
			zap.Int("index", chunk.Index),
			zap.Int("start_ms", chunk.StartMS),
			zap.Int("end_ms", chunk.EndMS))

		timer := p.monitor.StartSegment(int64(chunk.EndMS - chunk.StartMS))
		text := p.recognizer.Transcribe(ctx, chunk.Path, language)
		p.monitor.EndSegment(timer, text != "")

		// Empty results are filtered here so joining never produces
		// stray separators: ["hello", ""] joins to "hello".
		if text != "" {
			texts = append(texts, text)
		}

		workspace.TryCleanup(p.logger, "chunk file", func() error { return os.Remove(chunk.Path) })

		percent := math.Round(extractionShare + (100-extractionShare)*float64(i+1)/float64(total))
		report(percent, job.PhaseTranscribing,
			fmt.Sprintf("segment %d of %d", i+1, total))
	}

	return strings.Join(texts, " "), false
}
