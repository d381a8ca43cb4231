package pkg

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("boom")
}

func TestCombinedWriter(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	cw := NewCombinedWriter(&buf1, &buf2)

	n, err := cw.Write([]byte("test message"))
	require.NoError(t, err)
	assert.Equal(t, len("test message")*2, n)
	assert.Equal(t, "test message", buf1.String())
	assert.Equal(t, "test message", buf2.String())
}

func TestCombinedWriter_PartialFailure(t *testing.T) {
	var buf bytes.Buffer
	cw := NewCombinedWriter(failingWriter{}, &buf)

	n, err := cw.Write([]byte("msg"))
	require.Error(t, err)
	assert.Equal(t, len("msg"), n)
	assert.Equal(t, "msg", buf.String())
}
