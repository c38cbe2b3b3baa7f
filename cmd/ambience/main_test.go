package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livrya/ambience/internal/ambient"
	"github.com/livrya/ambience/internal/store"
	"github.com/livrya/ambience/internal/wav"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		genType, genDuration, genSpeechID, genOut = string(ambient.DefaultCategory), ambient.DefaultDuration, "", ""
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestCategoriesCommand(t *testing.T) {
	out := execute(t, "categories")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "nature"))
	assert.True(t, strings.HasPrefix(lines[4], "fireplace"))
}

func TestGenerateToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rain.wav")
	execute(t, "generate", "--type", "rain", "--duration", "5", "--out", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ambient.Generate("rain", 5), data)
}

func TestGenerateToStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AMBIENCE_UPLOADS_DIR", dir)

	out := execute(t, "generate", "-t", "wind", "-d", "6", "--speech-id", "sp-7")

	var res store.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "wind", res.AmbientType)
	assert.Equal(t, 6, res.DurationSeconds)
	assert.FileExists(t, filepath.Join(dir, "ambient", res.Filename))
}

func TestInspectCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "city.wav")
	require.NoError(t, os.WriteFile(path, ambient.Generate("city", 8), 0o644))

	out := execute(t, "inspect", path)
	assert.Contains(t, out, "sample rate  22050 Hz")
	assert.Contains(t, out, "channels     1")
	assert.Contains(t, out, "bits/sample  16")
	assert.Contains(t, out, "duration     8.00s")
}

func TestInspectRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 64), 0o644))

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"inspect", path})
	assert.ErrorIs(t, rootCmd.Execute(), wav.ErrNotRIFF)
}
