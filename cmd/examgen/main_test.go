package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examgen/internal/i18n"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, "s3cret\n", "hash-password")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestHashPasswordEmpty(t *testing.T) {
	_, err := execute(t, "\n", "hash-password")
	assert.Error(t, err)
}

func TestRenderList(t *testing.T) {
	out, err := execute(t, "", "render", "--list", "--env-file", filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.Contains(t, out, "library-erd")
}

func TestRenderTemplate(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "erd.png")
	_, err := execute(t, "", "render", "--template", "library-erd", "-o", png,
		"--env-file", filepath.Join(dir, "none.env"))
	require.NoError(t, err)

	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestRenderRequiresSelection(t *testing.T) {
	_, err := execute(t, "", "render", "--env-file", filepath.Join(t.TempDir(), "none.env"))
	assert.Error(t, err)
}

func TestGenerateRequiresPDF(t *testing.T) {
	_, err := execute(t, "", "generate")
	assert.Error(t, err)
}

func TestExportContextLanguage(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, i18n.Init("en")) })

	cmd := generateCmd()
	ctx, err := exportContext(cmd, "ko")
	require.NoError(t, err)
	assert.Equal(t, "ko", i18n.LanguageFromContext(ctx))
	assert.Equal(t, "다운로드", i18n.T(ctx, "DownloadsHeading"))

	require.NoError(t, cmd.Flags().Set("lang", "en"))
	ctx, err = exportContext(cmd, "ko")
	require.NoError(t, err)
	assert.Equal(t, "Downloads", i18n.T(ctx, "DownloadsHeading"))
}
