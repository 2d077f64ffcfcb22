package iohandle

import "github.com/google/uuid"

// NewID mints a registry key for a freshly-opened handle — a stable
// string identifier shared by every backing shape, including the ones
// with no real OS fd behind them.
func NewID() string {
	return uuid.NewString()
}
