package matchcore

import "fmt"

// Sentinel errors of the core API. ErrInvalidArgument and ErrWrongKind
// are returned by order construction, SetQuantity/SetPrice and Submit.
// Lookup and state-machine failures (an unknown id, a non-limit order
// passed to Modify) are reported as boolean/ok returns per Go
// convention, so no function in this package returns ErrNotFound.
var (
	ErrInvalidArgument = fmt.Errorf("matchcore: invalid argument")
	ErrNotFound        = fmt.Errorf("matchcore: not found")
	ErrWrongKind       = fmt.Errorf("matchcore: wrong order kind")
)

// wrapf attaches context to a sentinel error while keeping it
// discoverable via errors.Is.
func wrapf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, sentinel)...)
}
