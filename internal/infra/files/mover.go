// Package files relocates dropped files between watch, completed, error,
// and queue folders.
package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spoolhouse/sqlspool/internal/core/config"
)

const timestampLayout = "20060102_150405"

// maxReasonLen caps the sanitized error fragment appended to error-folder
// file names.
const maxReasonLen = 40

// Mover owns the file relocation and naming conventions.
type Mover struct {
	queueRoot string
}

// NewMover creates a mover using queueRoot for degraded-mode diversion.
func NewMover(queueRoot string) *Mover {
	return &Mover{queueRoot: queueRoot}
}

// EnsureDirectories creates the watch, completed, and error folders for a
// configuration if they do not exist.
func (m *Mover) EnsureDirectories(cfg config.WatchConfig) error {
	for _, dir := range []string{cfg.WatchFolder, cfg.CompletedFolder, cfg.ErrorFolder} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// MoveToCompleted relocates a successfully processed file into the
// completed folder with a timestamp suffix.
func (m *Mover) MoveToCompleted(path string, cfg config.WatchConfig) (string, error) {
	return moveFile(path, cfg.CompletedFolder, timestampName(path, ""))
}

// MoveToError relocates a failed file into the error folder, appending a
// sanitized fragment of the error text to the name.
func (m *Mover) MoveToError(path, reason string, cfg config.WatchConfig) (string, error) {
	return moveFile(path, cfg.ErrorFolder, timestampName(path, sanitize(reason)))
}

// MoveToQueue relocates a file into the per-configuration queue folder,
// keeping its original name.
func (m *Mover) MoveToQueue(path, configName string) (string, error) {
	return moveFile(path, filepath.Join(m.queueRoot, configName), filepath.Base(path))
}

// MoveFromQueue returns a queued file to the watch folder.
func (m *Mover) MoveFromQueue(queuedPath, watchFolder string) (string, error) {
	return moveFile(queuedPath, watchFolder, filepath.Base(queuedPath))
}

// timestampName builds "<name>_<ts>[_<fragment>]<ext>" from the source path.
func timestampName(path, fragment string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	ts := time.Now().Format(timestampLayout)
	if fragment != "" {
		return fmt.Sprintf("%s_%s_%s%s", name, ts, fragment, ext)
	}
	return fmt.Sprintf("%s_%s%s", name, ts, ext)
}

// sanitize collapses non-alphanumeric runs in an error message into single
// underscores and caps the length, so it is safe inside a file name.
func sanitize(reason string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range reason {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
		if b.Len() >= maxReasonLen {
			break
		}
	}
	return strings.Trim(b.String(), "_")
}

// moveFile relocates srcPath into dstDir under dstName, suffixing the name
// on collision and falling back to copy+remove for cross-device moves.
func moveFile(srcPath, dstDir, dstName string) (string, error) {
	if strings.TrimSpace(dstDir) == "" {
		return "", fmt.Errorf("destination directory is empty")
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", err
	}

	dstPath := filepath.Join(dstDir, dstName)
	if _, err := os.Stat(dstPath); err == nil {
		ext := filepath.Ext(dstName)
		name := strings.TrimSuffix(dstName, ext)
		dstPath = filepath.Join(dstDir, fmt.Sprintf("%s-%d%s", name, time.Now().UnixNano(), ext))
	}

	// Try fast rename first.
	if err := os.Rename(srcPath, dstPath); err == nil {
		return dstPath, nil
	}

	// Fallback: copy + remove (handles cross-device moves).
	in, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(dstPath)
		return "", copyErr
	}
	if closeErr != nil {
		_ = os.Remove(dstPath)
		return "", closeErr
	}
	if err := os.Remove(srcPath); err != nil {
		return "", err
	}
	return dstPath, nil
}
