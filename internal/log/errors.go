package log

import "io"

// CloseAndLogError closes the given resource, demoting any failure to a debug message.
func CloseAndLogError(closer io.Closer, location string) {
	if closer == nil {
		Debugf("no closer provided when attempting to close: %v", location)
		return
	}
	if err := closer.Close(); err != nil {
		Debugf("failed to close %v due to: %v", location, err)
	}
}
