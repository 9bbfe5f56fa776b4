package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")

	w, err := FileWriter(path)
	require.NoError(t, err)

	_, err = w.Write([]byte("first line\n"))
	require.NoError(t, err)

	// Appends rather than truncates on reopen.
	w2, err := FileWriter(path)
	require.NoError(t, err)
	_, err = w2.Write([]byte("second line\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first line")
	assert.Contains(t, string(data), "second line")
}

func TestInitializeWithLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	t.Setenv("LOG_FILE", path)

	Initialize("info")
	log := GetForComponent("logger_test")
	log.Info().Msg("file sink check")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file sink check")
	assert.Contains(t, string(data), "logger_test")
}

func TestInitializeWithoutLogFile(t *testing.T) {
	t.Setenv("LOG_FILE", "")

	Initialize("debug")
	assert.NotNil(t, Get())
}
