package driven

// ConfigStore holds settings under dotted keys such as "serial.baud".
// Every Set and Delete is persisted before it returns.
type ConfigStore interface {
	// GetString returns "" for missing keys and non-string values.
	GetString(key string) string

	// GetInt returns 0 for missing keys and non-integer values.
	GetInt(key string) int

	// Keys lists every stored key in sorted order, including keys the
	// caller does not understand.
	Keys() []string

	Set(key string, value any) error
	Delete(key string) error

	// Path names the backing file, for messages.
	Path() string
}
