package iohandle

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPackSockaddrIn checks the exact wire layout: family then port in
// network order, then raw IP bytes, then 8 zero bytes, assuming
// AF_INET.
func TestPackSockaddrIn(t *testing.T) {
	got := PackSockaddrIn([4]byte{127, 0, 0, 1}, 8080)
	want := [16]byte{0x00, 0x02, 0x1F, 0x90, 127, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0}
	require.Equal(t, want, got)
}

func TestSocketHandleConnAcceptRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := NewListenerSocketHandle(ln)
	defer server.Close()

	accepted := make(chan *SocketHandle, 1)
	acceptErr := make(chan error, 1)
	go func() {
		c, err := server.Accept()
		accepted <- c
		acceptErr <- err
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	clientHandle := NewConnSocketHandle(client)
	defer clientHandle.Close()

	require.NoError(t, <-acceptErr)
	serverConn := <-accepted
	defer serverConn.Close()

	n, err := clientHandle.Write([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	buf := make([]byte, 4)
	n, err = serverConn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))
}

func TestSocketHandleGetsocknamePacksLocalAddr(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	h := NewListenerSocketHandle(ln)
	defer h.Close()

	packed, err := h.Getsockname()
	require.NoError(t, err)
	require.Equal(t, byte(0x00), packed[0])
	require.Equal(t, byte(0x02), packed[1])
	port := ln.Addr().(*net.TCPAddr).Port
	require.Equal(t, byte(port>>8), packed[2])
	require.Equal(t, byte(port), packed[3])
	require.Equal(t, []byte{127, 0, 0, 1}, packed[4:8])

	_, err = h.Getpeername()
	require.Error(t, err, "a listening socket has no peer")
}

func TestSocketHandleOptionSideTable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	h := NewListenerSocketHandle(ln)

	require.NoError(t, h.SetOption("SO_CUSTOM_UNMAPPED", 42))
	v, ok := h.Option("SO_CUSTOM_UNMAPPED")
	require.True(t, ok)
	require.Equal(t, "42", v)

	_, ok = h.Option("SO_NEVER_SET")
	require.False(t, ok)
}

func TestSocketHandleSeekTruncateUnsupported(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	h := NewListenerSocketHandle(ln)

	_, err = h.Seek(0, SeekSet)
	require.Error(t, err)
	require.Error(t, h.Truncate(0))
}
