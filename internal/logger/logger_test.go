package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConsoleLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf})
	log.Debug("hidden")
	log.Info("shown", zap.String("path", "kb/a.md"))
	_ = log.Sync()
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "kb/a.md")

	buf.Reset()
	verbose := New(Options{Output: &buf, Verbose: true})
	verbose.Debug("visible")
	_ = verbose.Sync()
	assert.Contains(t, buf.String(), "visible")
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.log")
	var buf bytes.Buffer
	log := New(Options{Output: &buf, File: path, JSON: true})
	log.Warn("skipping empty body", zap.String("path", "kb/empty.md"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"skipping empty body"`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}
