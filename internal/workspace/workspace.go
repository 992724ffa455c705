package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

// maxTitleLength caps sanitized titles so folder names stay manageable
const maxTitleLength = 50

// JobMeta describes the acquired video for folder naming and info.txt
type JobMeta struct {
	Title     string
	SourceURL string
	VideoID   string
}

// SanitizeTitle reduces a video title to a safe folder-name fragment:
// alphanumerics, spaces, underscores and hyphens are kept, spaces become
// underscores, and the result is capped at 50 runes. Titles that sanitize
// to nothing become "video".
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}

	sanitized := strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
	if sanitized == "" {
		return "video"
	}

	runes := []rune(sanitized)
	if len(runes) > maxTitleLength {
		sanitized = string(runes[:maxTitleLength])
	}
	return sanitized
}

// CreateJobFolder creates the per-job working folder
// <root>/<sanitized-title>_<YYYYMMDD_HHMMSS> and writes an info.txt note
// into it. The timestamp suffix keeps repeated runs with the same input
// name unique. info.txt writing is best-effort.
func CreateJobFolder(root string, meta JobMeta, logger *zap.Logger) (string, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("failed to create output root %s: %w", root, err)
	}

	folderName := fmt.Sprintf("%s_%s", SanitizeTitle(meta.Title), time.Now().Format("20060102_150405"))
	folderPath := filepath.Join(root, folderName)
	if err := os.MkdirAll(folderPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create job folder %s: %w", folderPath, err)
	}

	writeInfoFile(folderPath, meta, logger)

	logger.Info("created job working folder", zap.String("folder", folderPath))
	return folderPath, nil
}

// writeInfoFile records the job metadata note; failures are only logged
func writeInfoFile(folderPath string, meta JobMeta, logger *zap.Logger) {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", meta.Title)
	fmt.Fprintf(&b, "Processed at: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	if meta.SourceURL != "" {
		fmt.Fprintf(&b, "Source URL: %s\n", meta.SourceURL)
	}
	if meta.VideoID != "" {
		fmt.Fprintf(&b, "Video ID: %s\n", meta.VideoID)
	}

	infoPath := filepath.Join(folderPath, "info.txt")
	if err := os.WriteFile(infoPath, []byte(b.String()), 0644); err != nil {
		logger.Warn("failed to write info.txt", zap.String("path", infoPath), zap.Error(err))
	}
}

// CopyVideo copies the source video into the job folder and returns the
// new path. When the copy fails the job proceeds on the original path in
// place, so only the logger hears about it.
func CopyVideo(src, folder string, logger *zap.Logger) string {
	dst := filepath.Join(folder, filepath.Base(src))

	if err := copyFile(src, dst); err != nil {
		logger.Warn("failed to copy video into job folder, operating in place",
			zap.String("src", src),
			zap.Error(err))
		return src
	}

	logger.Info("copied video into job folder", zap.String("path", dst))
	return dst
}

// MoveVideo moves a downloaded video into the job folder, falling back to
// copy+delete across filesystems
func MoveVideo(src, folder string) (string, error) {
	dst := filepath.Join(folder, filepath.Base(src))

	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}

	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to move video into %s: %w", folder, err)
	}
	os.Remove(src)
	return dst, nil
}

// copyFile copies src to dst, preserving nothing but the bytes
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// TryCleanup runs a best-effort cleanup action, logging failures instead
// of propagating them. Cleanup must never mask or replace a primary result.
func TryCleanup(logger *zap.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("cleanup failed", zap.String("what", what), zap.Error(err))
	}
}
