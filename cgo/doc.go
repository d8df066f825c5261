// Package cgo groups the native bindings used by idfflash.
//
// Each sub-package has a cgo implementation and a stub that is compiled
// with CGO_ENABLED=0, so the rest of the tree never needs a C toolchain.
// Currently that is udev, which reads USB properties of tty devices from
// libudev.
package cgo
