// Package partition reads, writes and validates ESP-IDF partition tables.
//
// Tables are exchanged in two forms: the human-editable CSV format used by
// ESP-IDF projects and the binary form written to flash at 0x8000.
package partition
