// Package memory provides in-memory implementations of driven ports.
// They back the service tests and runs with history disabled.
package memory
