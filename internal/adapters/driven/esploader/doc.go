// Package esploader speaks the serial protocol of the ESP32 family's ROM
// bootloader.
//
// Packets are SLIP framed. A request carries a direction byte of 0x00, the
// command, a 16-bit payload length, a 32-bit checksum used only by data
// commands, and the payload. The ROM answers with direction 0x01, the same
// command, a 32-bit value and a payload that ends in status bytes.
//
// The Connector resets the chip into download mode by toggling DTR and RTS,
// synchronises with the ROM and identifies the chip from its magic register.
// The resulting Loader implements driven.Device.
package esploader
