package iohandle

import "perlrt/internal/ioerr"

// ClosedHandle is the terminal state every backing shape transitions
// into on Close: every operation other than Close, EOF and Fileno fails
// with a KindClosed error, Close itself succeeds (close is idempotent),
// and there is no edge out of it.
type ClosedHandle struct{}

func (ClosedHandle) Read(p []byte) (int, error)  { return 0, ioerr.NewClosed("read") }
func (ClosedHandle) Write(p []byte) (int, error) { return 0, ioerr.NewClosed("write") }
func (ClosedHandle) Close() error                { return nil }
func (ClosedHandle) Flush() error                { return ioerr.NewClosed("flush") }
func (ClosedHandle) EOF() bool                    { return true }
func (ClosedHandle) Tell() (int64, error)        { return -1, ioerr.NewClosed("tell") }
func (ClosedHandle) Seek(int64, Whence) (int64, error) {
	return -1, ioerr.NewClosed("seek")
}
func (ClosedHandle) Truncate(int64) error  { return ioerr.NewClosed("truncate") }
func (ClosedHandle) Fileno() (int, bool)   { return 0, false }
