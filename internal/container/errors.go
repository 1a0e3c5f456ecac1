package container

import (
	"errors"
	"fmt"
)

// ErrUnknownFormat reports input whose leading bytes match no decoder.
var ErrUnknownFormat = errors.New("container: unrecognized file format")

// FormatError reports that a container could not be decoded. It wraps the
// decoder's own error.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("container: decode %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// MissingEntryError reports an archive without the expected entry.
type MissingEntryError struct {
	Archive string
	Entry   string
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("container: %s has no entry %q", e.Archive, e.Entry)
}
