package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, v bool) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	SetOutput(buf)
	SetVerbose(v)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetVerbose(false)
	})
	return buf
}

func TestDebugInfo_SilentUnlessVerbose(t *testing.T) {
	buf := capture(t, false)

	Debug("hidden %d", 1)
	Info("hidden %d", 2)

	assert.Empty(t, buf.String())
	assert.False(t, IsVerbose())
}

func TestDebugInfo_Verbose(t *testing.T) {
	buf := capture(t, true)

	Debug("chunk %d", 3)
	Info("inserted %d", 4)

	assert.Contains(t, buf.String(), "[DEBUG] chunk 3\n")
	assert.Contains(t, buf.String(), "[INFO] inserted 4\n")
}

func TestWarnError_AlwaysPrinted(t *testing.T) {
	buf := capture(t, false)

	Warn("no index on %s", "embedding")
	Error("boom")

	assert.Contains(t, buf.String(), "[WARN] no index on embedding")
	assert.Contains(t, buf.String(), "[ERROR] boom")
}
