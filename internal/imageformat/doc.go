// Package imageformat builds and inspects ESP-IDF application images.
//
// An application image starts with an 8-byte common header copied from the
// second-stage bootloader, followed by a 16-byte extended header and a list
// of segments. Flash-mapped (IROM/DROM) segments are placed so that their
// file offset and virtual address agree modulo the 64 KiB MMU page size;
// the gaps are filled with RAM segments or zero-filled padding segments.
// The image ends with an XOR checksum byte and an optional SHA-256 digest.
//
// # Import Rules
//
//   - Can Import: domain, partition
//   - Cannot Import: adapters, services
package imageformat
