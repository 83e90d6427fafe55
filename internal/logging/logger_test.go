package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCombinedWriterKeepsWritingAfterFailure(t *testing.T) {
	var a, b bytes.Buffer
	w := NewCombinedWriter(&a, failingWriter{}, &b)

	n, err := w.Write([]byte("hello"))
	assert.Equal(t, 5, n)
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, "hello", a.String())
	assert.Equal(t, "hello", b.String())

	n, err = NewCombinedWriter(failingWriter{}).Write([]byte("x"))
	assert.Zero(t, n)
	assert.Error(t, err)
}

func TestGetLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, GetLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, GetLevel(" WARN "))
	assert.Equal(t, logrus.InfoLevel, GetLevel("chatty"))
}

func TestSetupWritesToRotatingFile(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	base := filepath.Join(t.TempDir(), "fitlog")
	closer := Setup(SetupParams{LogFileName: base, LogLevel: "info", LogFormatJSON: true})
	logrus.Info("entry stored")
	require.NoError(t, closer.Close())

	contents, err := os.ReadFile(base + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(contents), `"msg":"entry stored"`)
}
