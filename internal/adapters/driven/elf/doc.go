// Package elf reads linked firmware executables into loadable segments.
//
// Only 32-bit little-endian executables are accepted, which covers both
// the Xtensa and RISC-V members of the ESP32 family. A segment is built
// from every allocated PROGBITS section with non-zero size.
package elf
