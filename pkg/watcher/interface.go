// Package watcher defines the settings file watcher contracts.
package watcher

// EventHandler handles a change of the watched file
type EventHandler interface {
	// HandleEvent processes a change of path
	HandleEvent(path string) error
}

// HandlerFunc adapts a function to EventHandler
type HandlerFunc func(path string) error

// HandleEvent calls f(path)
func (f HandlerFunc) HandleEvent(path string) error {
	return f(path)
}

// Debouncer coalesces rapid events
type Debouncer interface {
	// Debounce delays execution of fn until events settle
	Debounce(key string, fn func())
	// Stop stops the debouncer
	Stop()
}

// FileWatcher monitors a file for changes
type FileWatcher interface {
	// Stop stops the watcher; later calls do nothing
	Stop() error
}
