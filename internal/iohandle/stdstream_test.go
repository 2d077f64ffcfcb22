package iohandle

import (
	"bytes"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStdStreamHandleFIFOWithinOneProducer checks that writes from a
// single caller thread commit in submission order.
func TestStdStreamHandleFIFOWithinOneProducer(t *testing.T) {
	var buf bytes.Buffer
	h := NewStdStreamHandle(&buf, -1)
	defer h.Close()

	for i := 0; i < 50; i++ {
		n, err := h.Write([]byte(strconv.Itoa(i) + "\n"))
		require.NoError(t, err)
		require.Equal(t, len(strconv.Itoa(i))+1, n)
	}
	require.NoError(t, h.Flush())

	var want bytes.Buffer
	for i := 0; i < 50; i++ {
		want.WriteString(strconv.Itoa(i) + "\n")
	}
	require.Equal(t, want.String(), buf.String())
}

func TestStdStreamHandleFlushWaitsForInFlightWrites(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	h := NewStdStreamHandle(lockedWriter{&mu, &buf}, -1)
	defer h.Close()

	for i := 0; i < maxInFlightWritesPipe+10; i++ {
		_, err := h.Write([]byte("x"))
		require.NoError(t, err)
	}
	require.NoError(t, h.Flush())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, maxInFlightWritesPipe+10, buf.Len())
}

func TestStdStreamHandleUnsupportedOps(t *testing.T) {
	var buf bytes.Buffer
	h := NewStdStreamHandle(&buf, -1)
	defer h.Close()

	_, err := h.Read(make([]byte, 1))
	require.Error(t, err)
	_, err = h.Seek(0, SeekSet)
	require.Error(t, err)
	require.Error(t, h.Truncate(0))
	require.False(t, h.EOF())
}

type lockedWriter struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}
