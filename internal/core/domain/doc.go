// Package domain holds the types shared by every layer of idfflash.
//
//   - Chip and ChipParams: an ESP32-family target and its memory map
//   - FlashMode, FlashSize, FlashFrequency: values stored in image headers
//   - CodeSegment, RomSegment: bytes at CPU addresses and at flash offsets
//   - PartitionTable: how the flash is divided between apps and data
//   - SerialPortInfo, PortFilter: serial devices seen on the host
//   - AppSettings, FlashRecord: configuration and flash history
//
// Errors are sentinels in errors.go, plus typed errors that wrap them.
//
// # Import Rules
//
// Standard library only. Every other package may import domain; domain
// imports none of them.
package domain
