package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// audioExtensions lists sibling audio file extensions in search priority order
var audioExtensions = []string{".m4a", ".mp3", ".aac"}

// Extractor produces a 16-bit PCM WAV track from a video file. A direct
// ffmpeg transcode is the primary path; videos without an embedded audio
// track fall back to sibling audio files sharing the video's base name.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

// NewExtractor creates an Extractor using the given tool paths
func NewExtractor(ffmpegPath, ffprobePath string, logger *zap.Logger) *Extractor {
	return &Extractor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

// Extract writes the audio track of videoPath to wavPath as 16-bit PCM WAV
// at 44.1kHz. It reports success as a boolean and never returns an error:
// callers treat false as "no transcript possible" and abort the job with a
// message rather than a crash.
func (e *Extractor) Extract(ctx context.Context, videoPath, wavPath string) bool {
	e.logger.Info("extracting audio from video",
		zap.String("video", videoPath),
		zap.String("output", wavPath))

	// Audio-only containers skip the probe and transcode directly
	if isAudioOnly(videoPath) {
		if err := e.transcode(ctx, videoPath, wavPath); err != nil {
			e.logger.Warn("direct transcode of audio file failed", zap.Error(err))
			return e.lastResortTranscode(ctx, videoPath, wavPath)
		}
		return outputExists(wavPath)
	}

	hasAudio, err := e.hasAudioStream(ctx, videoPath)
	if err != nil {
		e.logger.Warn("audio stream probe failed, falling back to direct transcode",
			zap.String("video", videoPath),
			zap.Error(err))
		return e.lastResortTranscode(ctx, videoPath, wavPath)
	}

	if !hasAudio {
		e.logger.Info("video has no audio track, searching for sibling audio file",
			zap.String("video", videoPath))

		sibling := FindSiblingAudio(videoPath)
		if sibling == "" {
			e.logger.Warn("no sibling audio file found", zap.String("video", videoPath))
			return false
		}

		e.logger.Info("found sibling audio file", zap.String("audio", sibling))
		if err := e.transcode(ctx, sibling, wavPath); err != nil {
			e.logger.Warn("sibling audio transcode failed", zap.Error(err))
			return e.lastResortTranscode(ctx, videoPath, wavPath)
		}
		return outputExists(wavPath)
	}

	if err := e.transcode(ctx, videoPath, wavPath); err != nil {
		e.logger.Warn("audio extraction failed, retrying with direct transcode", zap.Error(err))
		return e.lastResortTranscode(ctx, videoPath, wavPath)
	}

	e.logger.Info("audio extracted successfully", zap.String("output", wavPath))
	return outputExists(wavPath)
}

// transcode runs ffmpeg to convert input into 16-bit PCM WAV at 44.1kHz
func (e *Extractor) transcode(ctx context.Context, input, output string) error {
	args := []string{
		"-y",
		"-i", input,
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		output,
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Debug("running ffmpeg transcode",
		zap.String("input", input),
		zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg transcode of %s failed: %w (stderr: %s)",
			input, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// lastResortTranscode retries a direct transcode of the original path once.
// Existence of the output file is the success signal on this path.
func (e *Extractor) lastResortTranscode(ctx context.Context, videoPath, wavPath string) bool {
	e.logger.Info("attempting last-resort ffmpeg transcode", zap.String("video", videoPath))

	if err := e.transcode(ctx, videoPath, wavPath); err != nil {
		e.logger.Warn("last-resort transcode failed", zap.Error(err))
	}

	if outputExists(wavPath) {
		e.logger.Info("last-resort transcode produced output", zap.String("output", wavPath))
		return true
	}
	return false
}

// hasAudioStream probes the container for at least one audio stream
func (e *Extractor) hasAudioStream(ctx context.Context, videoPath string) (bool, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		videoPath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return false, fmt.Errorf("ffprobe failed for %s: %w (stderr: %s)",
			videoPath, err, strings.TrimSpace(stderr.String()))
	}

	return strings.Contains(stdout.String(), "audio"), nil
}

// FindSiblingAudio searches the video's directory for audio files sharing
// the video's base name, returning the first match in extension priority
// order (.m4a, .mp3, .aac) or an empty string.
func FindSiblingAudio(videoPath string) string {
	base := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))

	for _, ext := range audioExtensions {
		matches, err := filepath.Glob(base + "*" + ext)
		if err != nil || len(matches) == 0 {
			continue
		}
		return matches[0]
	}
	return ""
}

// isAudioOnly reports whether path uses a known audio-only extension
func isAudioOnly(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, audioExt := range audioExtensions {
		if ext == audioExt {
			return true
		}
	}
	return false
}

// outputExists reports whether the extraction output is a regular file
func outputExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
