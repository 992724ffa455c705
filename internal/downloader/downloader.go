package downloader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
)

// placeholderTitle is used when the metadata query cannot resolve a title
const placeholderTitle = "youtube_video"

// Metadata describes a remote video before download
type Metadata struct {
	Title   string
	VideoID string
}

// Downloader acquires remote videos through a yt-dlp subprocess, reporting
// download progress parsed from the tool's line-buffered stdout. Title
// resolution is a separate lightweight metadata query so a failed query
// never blocks the download itself.
type Downloader struct {
	ytdlpPath string
	metadata  youtube.Client
	logger    *zap.Logger
}

// NewDownloader creates a Downloader using the given yt-dlp path
func NewDownloader(ytdlpPath string, logger *zap.Logger) *Downloader {
	return &Downloader{
		ytdlpPath: ytdlpPath,
		logger:    logger,
	}
}

// ResolveMetadata queries the video's title and ID without downloading.
// Failures degrade to a placeholder title: "youtube_<id>" when the URL
// carries a recognizable video ID, "youtube_video" otherwise.
func (d *Downloader) ResolveMetadata(ctx context.Context, videoURL string) Metadata {
	videoID, idErr := youtube.ExtractVideoID(videoURL)
	if idErr != nil {
		videoID = ""
	}

	video, err := d.metadata.GetVideoContext(ctx, videoURL)
	if err != nil || strings.TrimSpace(video.Title) == "" {
		d.logger.Warn("failed to resolve video title, using placeholder",
			zap.String("url", videoURL),
			zap.Error(err))
		if videoID != "" {
			return Metadata{Title: "youtube_" + videoID, VideoID: videoID}
		}
		return Metadata{Title: placeholderTitle}
	}

	d.logger.Info("resolved video title",
		zap.String("title", video.Title),
		zap.String("video_id", video.ID))
	return Metadata{Title: video.Title, VideoID: video.ID}
}

// Download runs yt-dlp against destDir and returns the saved file path.
// Progress percentages parsed from stdout drive onProgress on a 0-100
// scale for the download phase alone. A non-zero exit or a missing result
// file is a fatal acquisition failure. The subprocess is bound to ctx, so
// cancelling the job terminates this job's downloader only.
func (d *Downloader) Download(ctx context.Context, videoURL, destDir string, onProgress func(percent float64)) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory %s: %w", destDir, err)
	}

	args := []string{
		videoURL,
		"-o", filepath.Join(destDir, "%(title)s.%(ext)s"),
		"--force-overwrites",
		"--newline",
		"--progress",
		"--print", "after_move:filepath",
	}

	cmd := exec.CommandContext(ctx, d.ytdlpPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open yt-dlp stdout: %w", err)
	}

	d.logger.Info("starting video download",
		zap.String("url", videoURL),
		zap.String("dest", destDir))

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	var outputPath string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		d.logger.Debug("yt-dlp output", zap.String("line", line))

		if percent, ok := ParseProgressLine(line); ok && onProgress != nil {
			onProgress(percent)
			continue
		}

		// yt-dlp prints the final saved path after moving the file
		if info, statErr := os.Stat(line); statErr == nil && info.Mode().IsRegular() {
			outputPath = line
		}
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("yt-dlp failed for %s: %w (stderr: %s)",
			videoURL, err, strings.TrimSpace(stderr.String()))
	}

	if outputPath == "" {
		// The printed path was missed; fall back to the newest file in
		// the download directory.
		outputPath = newestFileIn(destDir)
	}
	if outputPath == "" {
		return "", fmt.Errorf("download of %s appears to have failed, no file found in %s", videoURL, destDir)
	}

	if onProgress != nil {
		onProgress(100)
	}

	d.logger.Info("video downloaded", zap.String("path", outputPath))
	return outputPath, nil
}

// ParseProgressLine extracts the percentage from a yt-dlp progress line
// such as "[download]  42.7% of 10.55MiB at 2.50MiB/s ETA 00:02". The
// second return value reports whether the line was a progress event.
func ParseProgressLine(line string) (float64, bool) {
	rest, ok := strings.CutPrefix(line, "[download]")
	if !ok {
		return 0, false
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 || !strings.HasSuffix(fields[0], "%") {
		return 0, false
	}

	var percent float64
	if _, err := fmt.Sscanf(fields[0], "%f%%", &percent); err != nil {
		return 0, false
	}
	if percent < 0 || percent > 100 {
		return 0, false
	}
	return percent, true
}

// newestFileIn returns the most recently modified regular file in dir,
// or an empty string
func newestFileIn(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var newest string
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = filepath.Join(dir, entry.Name())
			newestMod = mod
		}
	}
	return newest
}
