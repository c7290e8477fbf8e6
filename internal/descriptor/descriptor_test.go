package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streams.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadList_BareArray(t *testing.T) {
	path := writeList(t, `[
		{"id": "abc", "type": "channel", "slug": "mychannel"},
		{"id": "xyz", "type": "video", "slug": "clip", "subfolder": "events/live"}
	]`)

	list, err := LoadList(path, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].QueryParam())
	assert.Equal(t, "v", list[1].QueryParam())
	assert.Equal(t, "events/live", list[1].Subfolder)
}

func TestLoadList_StreamsWrapper(t *testing.T) {
	path := writeList(t, `{"streams": [{"id": "abc", "slug": "s1"}]}`)

	list, err := LoadList(path, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, TypeChannel, list[0].Type)
}

func TestLoadList_RejectsWholeListOnInvalidEntry(t *testing.T) {
	path := writeList(t, `[
		{"id": "abc", "slug": "ok"},
		{"id": "", "slug": "missing-id"}
	]`)

	_, err := LoadList(path, zerolog.Nop())
	require.ErrorIs(t, err, ErrMissingID)
}

func TestLoadList_RejectsMalformedJSON(t *testing.T) {
	path := writeList(t, `{"streams": [`)
	_, err := LoadList(path, zerolog.Nop())
	require.Error(t, err)
}

func TestLoadList_MissingFile(t *testing.T) {
	_, err := LoadList(filepath.Join(t.TempDir(), "nope.json"), zerolog.Nop())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate_UnknownTypeFallsBackToChannel(t *testing.T) {
	d := Descriptor{ID: "abc", Type: "livestream", Slug: "s"}
	require.NoError(t, d.Validate(zerolog.Nop()))
	assert.Equal(t, TypeChannel, d.Type)
	assert.Equal(t, "c", d.QueryParam())
}

func TestValidate_PlaylistParam(t *testing.T) {
	d := Descriptor{ID: "pl", Type: TypePlaylist, Slug: "s"}
	require.NoError(t, d.Validate(zerolog.Nop()))
	assert.Equal(t, "p", d.QueryParam())
}

func TestValidate_MissingSlug(t *testing.T) {
	d := Descriptor{ID: "abc"}
	require.ErrorIs(t, d.Validate(zerolog.Nop()), ErrMissingSlug)
}

func TestValidate_UnsafePaths(t *testing.T) {
	cases := []Descriptor{
		{ID: "a", Slug: "../escape"},
		{ID: "a", Slug: "nested/slug"},
		{ID: "a", Slug: "ok", Subfolder: "../out"},
		{ID: "a", Slug: "ok", Subfolder: "/abs"},
	}
	for _, d := range cases {
		require.ErrorIs(t, d.Validate(zerolog.Nop()), ErrUnsafePath, "descriptor %+v", d)
	}

	safe := Descriptor{ID: "a", Slug: "ok", Subfolder: "a/b"}
	require.NoError(t, safe.Validate(zerolog.Nop()))
}
