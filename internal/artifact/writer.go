package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/streampin/streampin/internal/descriptor"
	"github.com/streampin/streampin/internal/manifest"
)

// Writer owns the on-disk manifest artifacts under a single output root.
// Nothing else touches that tree; a descriptor's artifact is written on a
// successful fetch and removed whenever an update cannot be produced, so a
// stale manifest never keeps being served.
type Writer struct {
	root   string
	logger zerolog.Logger
}

// NewWriter creates a writer rooted at outputRoot.
func NewWriter(outputRoot string, logger zerolog.Logger) *Writer {
	return &Writer{root: outputRoot, logger: logger}
}

// PathFor computes the canonical artifact path:
// {root}/{subfolder?}/{slug}.m3u8.
func (w *Writer) PathFor(d descriptor.Descriptor) string {
	dir := w.root
	if d.Subfolder != "" {
		dir = filepath.Join(w.root, d.Subfolder)
	}
	return filepath.Join(dir, d.Slug+".m3u8")
}

// Write normalizes the manifest quality order and replaces the artifact.
// The content lands via a same-directory temp file and rename, so a reader
// never observes a half-written playlist.
func (w *Writer) Write(d descriptor.Descriptor, manifestText string) error {
	dest := w.PathFor(d)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output dir for %s: %w", d.Slug, err)
	}

	content := manifest.Reorder(manifestText)

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+d.Slug+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", d.Slug, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", dest, err)
	}

	w.logger.Info().Str("path", dest).Msg("saved manifest")
	return nil
}

// DeleteIfExists removes a descriptor's artifact when present. Removal
// failures are reported as warnings, never propagated; the return value
// says whether a file was actually removed.
func (w *Writer) DeleteIfExists(d descriptor.Descriptor) bool {
	dest := w.PathFor(d)
	err := os.Remove(dest)
	switch {
	case err == nil:
		w.logger.Warn().Str("path", dest).Msg("deleted stale manifest")
		return true
	case os.IsNotExist(err):
		return false
	default:
		w.logger.Warn().Err(err).Str("path", dest).Msg("could not delete stale manifest")
		return false
	}
}
