package bond

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a member or group does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyAttached is returned when a member is attached twice.
	ErrAlreadyAttached = errors.New("member already attached")
	// ErrGroupExists is returned when a group name is reused.
	ErrGroupExists = errors.New("group already exists")
	// ErrNotUsable is returned when a member that is not up is forced active.
	ErrNotUsable = errors.New("member is not up")
	// ErrNotSupported is returned for operations the bond mode does not have.
	ErrNotSupported = errors.New("not supported by bond mode")
)

// ConfigurationError reports an invalid monitoring configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
