//go:build windows

package iohandle

import "golang.org/x/sys/windows"

// socketOptionHandlers maps a small allow-list of named socket options
// to real setsockopt calls via golang.org/x/sys/windows. Anything not
// in this table is stored on a side table and returned verbatim by
// SocketHandle.SetOption/Option.
var socketOptionHandlers = map[string]func(fd int, value int) error{
	"SO_REUSEADDR": func(fd, v int) error {
		return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, v)
	},
	"SO_KEEPALIVE": func(fd, v int) error {
		return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_KEEPALIVE, v)
	},
	"SO_RCVBUF": func(fd, v int) error {
		return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_RCVBUF, v)
	},
	"SO_SNDBUF": func(fd, v int) error {
		return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_SNDBUF, v)
	},
}
