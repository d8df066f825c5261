// Package udev provides a serial port enumerator backed by libudev.
// It implements the driven.PortEnumerator interface and reads USB identity
// from the udev database, which also covers ports that sysfs scanning misses.
//
// Build requires:
//   - libudev development headers
//   - Install via: apt install libudev-dev (Linux)
//
// Builds without CGO, or on other platforms, get a stub whose List returns
// domain.ErrNotImplemented so callers fall back to the pure Go enumerator.
package udev
