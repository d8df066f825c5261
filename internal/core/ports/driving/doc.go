// Package driving declares the operations the CLI and prompts call on the
// core: building and inspecting images, flashing boards, converting
// partition tables, watching the serial console, and reading settings and
// flash history.
//
// Request structs carry optional overrides; a zero field means "use the
// configured or detected default". Services implementing these
// interfaces live in internal/core/services.
package driving
