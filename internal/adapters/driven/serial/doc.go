// Package serial opens and enumerates serial ports with go.bug.st/serial.
package serial
