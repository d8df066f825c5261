// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - FirmwareLoader: Reads ELF executables into firmware images
//   - PortOpener: Opens serial devices
//   - PortEnumerator: Lists serial devices attached to the host
//   - DeviceConnector: Brings a chip into download mode and talks to its ROM
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - HistoryStore: Flash history persistence. Without it, nothing is recorded.
//   - ProgressReporter: Write progress. Without it, writes are silent.
//   - PortSelector: Interactive port choice. Without it, ambiguous
//     auto-detection is an error.
//   - FileWatcher: Change notification for save-image --watch.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
