// Package file stores idfflash settings in config.toml.
//
// Keys are dotted paths ("serial.baud", "image.bootloader_dir") that map
// onto nested TOML tables, so the file stays readable when edited by hand.
// The default location is ~/.idfflash/config.toml.
package file
