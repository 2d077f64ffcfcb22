package iohandle

import (
	"io"
	"net"
	"syscall"

	"perlrt/internal/ioerr"
)

// SocketHandle wraps a net.Conn (connected) or net.Listener (listening)
// in one handle type; tell reports -1, seek/truncate always refuse with
// Unsupported, and close is idempotent.
type SocketHandle struct {
	conn     net.Conn
	listener net.Listener
	eof      bool
	closed   bool

	// options is the side table for anything socketOptionHandlers
	// doesn't natively translate.
	options map[string]string
}

// NewConnSocketHandle wraps a connected socket.
func NewConnSocketHandle(conn net.Conn) *SocketHandle {
	return &SocketHandle{conn: conn, options: make(map[string]string)}
}

// NewListenerSocketHandle wraps a listening socket.
func NewListenerSocketHandle(l net.Listener) *SocketHandle {
	return &SocketHandle{listener: l, options: make(map[string]string)}
}

func (h *SocketHandle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, ioerr.NewClosed("read")
	}
	if h.conn == nil {
		return 0, ioerr.NewUnsupported("read", "listening socket")
	}
	n, err := h.conn.Read(p)
	if err == io.EOF {
		h.eof = true
		return n, nil
	}
	if err != nil {
		return n, ioerr.WrapIO(err, "socket read")
	}
	return n, nil
}

func (h *SocketHandle) Write(p []byte) (int, error) {
	if h.closed {
		return 0, ioerr.NewClosed("write")
	}
	if h.conn == nil {
		return 0, ioerr.NewUnsupported("write", "listening socket")
	}
	n, err := h.conn.Write(p)
	if err != nil {
		return n, ioerr.WrapIO(err, "socket write")
	}
	return n, nil
}

func (h *SocketHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if h.conn != nil {
		return ioerr.WrapIO(h.conn.Close(), "socket close")
	}
	if h.listener != nil {
		return ioerr.WrapIO(h.listener.Close(), "listener close")
	}
	return nil
}

func (h *SocketHandle) Flush() error {
	if h.closed {
		return ioerr.NewClosed("flush")
	}
	return nil
}

func (h *SocketHandle) EOF() bool { return h.eof }

func (h *SocketHandle) Tell() (int64, error) { return -1, nil }

func (h *SocketHandle) Seek(int64, Whence) (int64, error) {
	return -1, ioerr.NewUnsupported("seek", "socket")
}

func (h *SocketHandle) Truncate(int64) error {
	return ioerr.NewUnsupported("truncate", "socket")
}

type syscallConner interface {
	SyscallConn() (syscall.RawConn, error)
}

func (h *SocketHandle) Fileno() (int, bool) {
	var sc syscallConner
	var ok bool
	if h.conn != nil {
		sc, ok = h.conn.(syscallConner)
	} else if h.listener != nil {
		sc, ok = h.listener.(syscallConner)
	}
	if !ok {
		return 0, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, false
	}
	var fd int
	found := false
	if err := raw.Control(func(s uintptr) {
		fd = int(s)
		found = true
	}); err != nil {
		return 0, false
	}
	return fd, found
}

// ConnectSocket dials address and wraps the connection — the
// fresh -> connected edge of the socket state machine.
func ConnectSocket(network, address string) (*SocketHandle, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, ioerr.WrapIO(err, "socket connect")
	}
	return NewConnSocketHandle(conn), nil
}

// ListenSocket binds and listens on address in one step — the
// fresh -> bound -> listening edges of the socket state machine (the
// Go net package has no separate bind-without-listen for streams).
func ListenSocket(network, address string) (*SocketHandle, error) {
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, ioerr.WrapIO(err, "socket listen")
	}
	return NewListenerSocketHandle(l), nil
}

// Getsockname packs the socket's local address as a 16-byte
// sockaddr_in.
func (h *SocketHandle) Getsockname() ([16]byte, error) {
	if h.conn != nil {
		return packAddr(h.conn.LocalAddr())
	}
	if h.listener != nil {
		return packAddr(h.listener.Addr())
	}
	return [16]byte{}, ioerr.NewClosed("getsockname")
}

// Getpeername packs the connected peer's address as a 16-byte
// sockaddr_in. Listening sockets have no peer.
func (h *SocketHandle) Getpeername() ([16]byte, error) {
	if h.conn == nil {
		return [16]byte{}, ioerr.NewUnsupported("getpeername", "listening socket")
	}
	return packAddr(h.conn.RemoteAddr())
}

func packAddr(addr net.Addr) ([16]byte, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return [16]byte{}, ioerr.NewUnsupported("sockaddr packing", addr.Network())
	}
	ip4 := tcp.IP.To4()
	if ip4 == nil {
		return [16]byte{}, ioerr.NewUnsupported("sockaddr packing", "non-IPv4 address")
	}
	var ip [4]byte
	copy(ip[:], ip4)
	return PackSockaddrIn(ip, uint16(tcp.Port)), nil
}

// Accept accepts one pending connection on a listening socket.
func (h *SocketHandle) Accept() (*SocketHandle, error) {
	if h.listener == nil {
		return nil, ioerr.NewUnsupported("accept", "connected socket")
	}
	conn, err := h.listener.Accept()
	if err != nil {
		return nil, ioerr.WrapIO(err, "socket accept")
	}
	return NewConnSocketHandle(conn), nil
}

// SetOption applies a named option, preferring a native setsockopt
// translation and falling back to the side table.
func (h *SocketHandle) SetOption(name string, value int) error {
	if fn, ok := socketOptionHandlers[name]; ok {
		if fd, hasFd := h.Fileno(); hasFd {
			return ioerr.WrapIO(fn(fd, value), "setsockopt "+name)
		}
	}
	h.options[name] = itoa(value)
	return nil
}

// Option returns a previously stored verbatim option value.
func (h *SocketHandle) Option(name string) (string, bool) {
	v, ok := h.options[name]
	return v, ok
}

// PackSockaddrIn packs ip/port into the 16-byte sockaddr_in layout
// getsockname/getpeername expose: family (network order), port
// (network order), 4 raw IP bytes, 8 zero bytes, AF_INET assumed.
func PackSockaddrIn(ip [4]byte, port uint16) [16]byte {
	var out [16]byte
	out[0] = 0x00
	out[1] = 0x02
	out[2] = byte(port >> 8)
	out[3] = byte(port)
	copy(out[4:8], ip[:])
	return out
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
