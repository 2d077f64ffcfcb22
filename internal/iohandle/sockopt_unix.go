//go:build unix

package iohandle

import "golang.org/x/sys/unix"

// socketOptionHandlers maps a small allow-list of named socket options
// to real setsockopt calls via golang.org/x/sys/unix. Anything not in
// this table is stored on a side table and returned verbatim by
// SocketHandle.SetOption/Option.
var socketOptionHandlers = map[string]func(fd int, value int) error{
	"SO_REUSEADDR": func(fd, v int) error {
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, v)
	},
	"SO_KEEPALIVE": func(fd, v int) error {
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, v)
	},
	"SO_RCVBUF": func(fd, v int) error {
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, v)
	},
	"SO_SNDBUF": func(fd, v int) error {
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, v)
	},
}
