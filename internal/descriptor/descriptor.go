package descriptor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrMissingID indicates a descriptor without an upstream identifier.
	ErrMissingID = errors.New("descriptor missing id")
	// ErrMissingSlug indicates a descriptor without an output slug.
	ErrMissingSlug = errors.New("descriptor missing slug")
	// ErrUnsafePath indicates a slug or subfolder that would escape the output tree.
	ErrUnsafePath = errors.New("descriptor path unsafe")
)

// Type selects which upstream query parameter a descriptor resolves through.
type Type string

const (
	TypeVideo    Type = "video"
	TypeChannel  Type = "channel"
	TypePlaylist Type = "playlist"
)

// Descriptor identifies one live stream to pin: the upstream id, the kind of
// upstream object it names, and where the pinned manifest lands on disk.
type Descriptor struct {
	ID        string `json:"id"`
	Type      Type   `json:"type,omitempty"`
	Slug      string `json:"slug"`
	Subfolder string `json:"subfolder,omitempty"`
}

// QueryParam maps the descriptor type to the endpoint query key.
// Unknown types have already been normalized to channel by Validate.
func (d Descriptor) QueryParam() string {
	switch d.Type {
	case TypeVideo:
		return "v"
	case TypePlaylist:
		return "p"
	default:
		return "c"
	}
}

// Validate checks required fields and filesystem safety, normalizing the
// type in place. An unrecognized type logs a warning and falls back to
// channel rather than producing an invalid upstream request.
func (d *Descriptor) Validate(logger zerolog.Logger) error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(d.Slug) == "" {
		return ErrMissingSlug
	}
	if !safeSlug(d.Slug) {
		return fmt.Errorf("%w: slug %q", ErrUnsafePath, d.Slug)
	}
	if d.Subfolder != "" && !safeSubfolder(d.Subfolder) {
		return fmt.Errorf("%w: subfolder %q", ErrUnsafePath, d.Subfolder)
	}

	switch d.Type {
	case "":
		d.Type = TypeChannel
	case TypeVideo, TypeChannel, TypePlaylist:
	default:
		logger.Warn().
			Str("slug", d.Slug).
			Str("type", string(d.Type)).
			Msg("unknown stream type, falling back to channel")
		d.Type = TypeChannel
	}
	return nil
}

// safeSlug accepts a single path segment only.
func safeSlug(slug string) bool {
	if slug == "." || slug == ".." {
		return false
	}
	return !strings.ContainsAny(slug, `/\`)
}

// safeSubfolder accepts a relative path that stays inside the output root.
func safeSubfolder(sub string) bool {
	if filepath.IsAbs(sub) || strings.Contains(sub, `\`) {
		return false
	}
	clean := filepath.Clean(sub)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
