package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"videotranscriber/internal/chunker"
	"videotranscriber/internal/config"
	"videotranscriber/internal/downloader"
	"videotranscriber/internal/extractor"
	"videotranscriber/internal/job"
	"videotranscriber/internal/logger"
	"videotranscriber/internal/pipeline"
	"videotranscriber/internal/recognizer"
	"videotranscriber/internal/workspace"
)

// RunOptions selects the video source and per-run overrides. Exactly one
// of LocalPath and YouTubeURL must be set.
type RunOptions struct {
	LocalPath  string
	YouTubeURL string
	OutputPath string // transcript destination; derived from the video name when empty
	Language   string // BCP-47 tag; falls back to the configured default
	ChunkSec   int    // segment length; falls back to the configured default
}

// Result carries the outcome of one completed run
type Result struct {
	Job        *job.Job
	Transcript string
	Status     job.Status
}

// transcriptionRunner is the pipeline surface the application drives
type transcriptionRunner interface {
	Run(ctx context.Context, videoPath, outputTextPath, language string, chunkSec int, onProgress pipeline.ProgressFunc) (string, error)
}

// Application wires configuration, logging, acquisition, and the
// transcription pipeline into a single-job orchestrator
type Application struct {
	config    *config.Configuration
	zapLogger *zap.Logger
	pipeline  transcriptionRunner
}

// NewApplication creates an application with all components initialized.
// Configuration comes from the file named by CONFIG_PATH when set,
// otherwise from environment variables.
func NewApplication() (*Application, error) {
	var cfg *config.Configuration
	var err error

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		cfg, err = config.NewConfigurationFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.NewConfigurationFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load config from environment: %w", err)
		}
	}

	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig creates an application from an explicit
// configuration. Media tool paths are resolved up front so a missing
// ffmpeg fails at startup rather than mid-job.
func NewApplicationWithConfig(cfg *config.Configuration) (*Application, error) {
	zapLogger := logger.NewLoggerForMode(cfg.GetDebugMode())

	ffmpegPath, err := config.ResolveToolPath(cfg.GetFFmpegPath())
	if err != nil {
		return nil, fmt.Errorf("ffmpeg is required: %w", err)
	}
	ffprobePath, err := config.ResolveToolPath(cfg.GetFFprobePath())
	if err != nil {
		return nil, fmt.Errorf("ffprobe is required: %w", err)
	}

	ext := extractor.NewExtractor(ffmpegPath, ffprobePath, zapLogger)
	chk := chunker.NewChunker(zapLogger)
	rec := recognizer.NewGoogleRecognizer(cfg.GetRecognizerEndpoint(), cfg.GetRecognizerAPIKey(), zapLogger)

	return &Application{
		config:    cfg,
		zapLogger: zapLogger,
		pipeline:  pipeline.NewPipeline(ext, chk, rec, zapLogger),
	}, nil
}

// Run executes one transcription job end to end: acquire the video into a
// per-job folder, run the pipeline, and return the transcript. The
// returned Result carries the final job status even when err is non-nil.
func (app *Application) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	remote := opts.YouTubeURL != ""
	source := opts.LocalPath
	if remote {
		source = opts.YouTubeURL
	}
	if source == "" {
		return nil, errors.New("no video source: provide a local path or a YouTube URL")
	}

	language := opts.Language
	if language == "" {
		language = app.config.GetLanguage()
	}
	chunkSec := opts.ChunkSec
	if chunkSec <= 0 {
		chunkSec = app.config.GetChunkDurationSec()
	}

	j := job.New(source, remote, language, chunkSec)
	tracker := job.NewTracker(j.ID)
	result := &Result{Job: j}

	app.zapLogger.Info("starting transcription job",
		zap.String("job_id", j.ID),
		zap.String("source", source),
		zap.Bool("remote", remote),
		zap.String("language", language),
		zap.Int("chunk_sec", chunkSec))

	videoPath, err := app.acquire(ctx, j, tracker)
	if err != nil {
		app.finish(ctx, tracker, err)
		result.Status = tracker.Status()
		return result, fmt.Errorf("failed to acquire video: %w", err)
	}

	transcript, err := app.pipeline.Run(ctx, videoPath, opts.OutputPath, language, chunkSec,
		app.progressFunc(tracker))
	result.Transcript = transcript
	if err != nil {
		app.finish(ctx, tracker, err)
		result.Status = tracker.Status()
		return result, err
	}

	// The pipeline reports writing only when it has text to save; make
	// sure the tracker still walks the full phase sequence to done.
	if tracker.Status().Phase == job.PhaseTranscribing {
		_ = tracker.Transition(job.PhaseWriting)
	}
	if err := tracker.Transition(job.PhaseDone); err != nil {
		app.zapLogger.Warn("unexpected phase at completion", zap.Error(err))
	}

	j.OutputPath = transcriptPath(opts.OutputPath, videoPath)
	result.Status = tracker.Status()

	app.zapLogger.Info("transcription job finished",
		zap.String("job_id", j.ID),
		zap.Int("transcript_chars", len(transcript)),
		zap.String("folder", j.Folder))
	return result, nil
}

// Shutdown flushes buffered log entries
func (app *Application) Shutdown() error {
	app.zapLogger.Info("shutting down application")
	// Sync on stderr loggers returns a spurious error on some platforms
	_ = app.zapLogger.Sync()
	return nil
}

// acquire places the source video inside a fresh per-job folder and
// returns its path there
func (app *Application) acquire(ctx context.Context, j *job.Job, tracker *job.Tracker) (string, error) {
	if j.Remote {
		return app.acquireRemote(ctx, j, tracker)
	}
	return app.acquireLocal(j)
}

func (app *Application) acquireLocal(j *job.Job) (string, error) {
	if _, err := os.Stat(j.Source); err != nil {
		return "", fmt.Errorf("video file not accessible: %w", err)
	}

	title := strings.TrimSuffix(filepath.Base(j.Source), filepath.Ext(j.Source))
	folder, err := workspace.CreateJobFolder(app.config.GetOutputRoot(), workspace.JobMeta{Title: title}, app.zapLogger)
	if err != nil {
		return "", err
	}
	j.Folder = folder

	// CopyVideo falls back to processing the file in place when the copy
	// fails, so this path never aborts the job.
	return workspace.CopyVideo(j.Source, folder, app.zapLogger), nil
}

func (app *Application) acquireRemote(ctx context.Context, j *job.Job, tracker *job.Tracker) (string, error) {
	ytdlpPath, err := config.ResolveToolPath(app.config.GetYtDlpPath())
	if err != nil {
		return "", fmt.Errorf("yt-dlp is required for YouTube sources: %w", err)
	}
	dl := downloader.NewDownloader(ytdlpPath, app.zapLogger)

	meta := dl.ResolveMetadata(ctx, j.Source)
	app.zapLogger.Info("resolved video metadata",
		zap.String("title", meta.Title),
		zap.String("video_id", meta.VideoID))

	tempDir := filepath.Join(app.config.GetOutputRoot(), fmt.Sprintf("temp_%d", time.Now().UnixNano()))
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	videoPath, err := dl.Download(ctx, j.Source, tempDir, func(percent float64) {
		tracker.SetProgress(0, fmt.Sprintf("downloading %.1f%%", percent))
	})
	if err != nil {
		workspace.TryCleanup(app.zapLogger, "temp download directory", func() error { return os.RemoveAll(tempDir) })
		return "", err
	}

	folder, err := workspace.CreateJobFolder(app.config.GetOutputRoot(), workspace.JobMeta{
		Title:     meta.Title,
		SourceURL: j.Source,
		VideoID:   meta.VideoID,
	}, app.zapLogger)
	if err != nil {
		workspace.TryCleanup(app.zapLogger, "temp download directory", func() error { return os.RemoveAll(tempDir) })
		return "", err
	}
	j.Folder = folder

	finalPath, err := workspace.MoveVideo(videoPath, folder)
	if err != nil {
		workspace.TryCleanup(app.zapLogger, "temp download directory", func() error { return os.RemoveAll(tempDir) })
		return "", fmt.Errorf("failed to move downloaded video: %w", err)
	}

	workspace.TryCleanup(app.zapLogger, "temp download directory", func() error { return os.RemoveAll(tempDir) })
	return finalPath, nil
}

// progressFunc forwards pipeline progress into the job tracker, advancing
// the phase on the first report of each new stage
func (app *Application) progressFunc(tracker *job.Tracker) pipeline.ProgressFunc {
	return func(percent float64, phase job.Phase, detail string) {
		switch phase {
		case job.PhaseExtracting, job.PhaseTranscribing, job.PhaseWriting:
			if tracker.Status().Phase != phase {
				if err := tracker.Transition(phase); err != nil {
					app.zapLogger.Debug("skipping phase transition", zap.Error(err))
				}
			}
		}
		tracker.SetProgress(percent, detail)
	}
}

// finish records a terminal state for a failed or cancelled run
func (app *Application) finish(ctx context.Context, tracker *job.Tracker, runErr error) {
	if errors.Is(runErr, context.Canceled) || ctx.Err() != nil {
		tracker.Cancel()
		return
	}
	tracker.Fail(runErr.Error())
}

func transcriptPath(requested, videoPath string) string {
	if requested != "" {
		return requested
	}
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	return filepath.Join(filepath.Dir(videoPath), base+"_transcript.txt")
}
