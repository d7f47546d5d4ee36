//go:build !linux

// Package hid implements the device snapshot source on top of the platform's
// raw HID layer.
package hid

import (
	"context"
	"errors"
	"io"

	"github.com/mkanda/typerace/internal/domain/model"
)

// ErrUnsupportedPlatform is returned where no raw HID access exists.
var ErrUnsupportedPlatform = errors.New("raw HID access not supported on this platform")

// Enumerator is a stub for platforms without raw HID access. The pipeline can
// still run against it in the degraded timing-heuristic mode.
type Enumerator struct{}

// NewEnumerator creates the stub enumerator.
func NewEnumerator() *Enumerator {
	return &Enumerator{}
}

// ListDevices returns no devices.
func (e *Enumerator) ListDevices(ctx context.Context) ([]model.Device, error) {
	return nil, nil
}

// OpenStream always fails.
func (e *Enumerator) OpenStream(ctx context.Context, path string) (io.ReadCloser, error) {
	return nil, ErrUnsupportedPlatform
}
