package fonts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func writeLatinFont(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "latin.ttf")
	require.NoError(t, os.WriteFile(p, goregular.TTF, 0o600))
	return p
}

func TestLoadLatinOnlyFontLacksHangul(t *testing.T) {
	s, err := Load(writeLatinFont(t))
	require.NoError(t, err)
	assert.False(t, s.HasHangul())
	assert.False(t, s.Fallback)
}

func TestResolveRejectsLatinOnlyFont(t *testing.T) {
	p := writeLatinFont(t)

	s, err := resolve([]string{p}, p)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), p)
	require.NotNil(t, s)
	assert.True(t, s.Fallback)
	assert.Equal(t, FallbackName, s.Name)
}

func TestResolveMissingExplicitPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.ttf")

	s, err := resolve([]string{missing}, missing)
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, s.Fallback)
}

func TestResolveReportsFallbackWhenNothingQualifies(t *testing.T) {
	s, err := resolve([]string{writeLatinFont(t)}, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, s.Fallback)
}

func TestFallbackFace(t *testing.T) {
	fb := Fallback()
	assert.False(t, fb.HasHangul())
	face := fb.Face(12)
	require.NotNil(t, face)
	adv, ok := face.GlyphAdvance('A')
	assert.True(t, ok)
	assert.Positive(t, int(adv))
}
