package bridge

import (
	"errors"

	"github.com/caffeineduck/quickjs/value"
)

// Sentinel errors for context construction and execution failures.
var (
	// ErrRuntimeCreation marks a failure to boot the guest runtime.
	ErrRuntimeCreation = errors.New("could not create runtime")
	// ErrContextCreation marks a failure to create a guest context.
	ErrContextCreation = errors.New("could not create context")
	// ErrOutOfMemory marks a guest allocation failure surfaced as an
	// exception whose message names an out of memory condition.
	ErrOutOfMemory = errors.New("guest out of memory")
	// ErrNoModuleLoader marks a module operation on a context with no
	// loader configured.
	ErrNoModuleLoader = errors.New("no module loader configured")
)

// GuestError carries a value thrown by guest code. Match with errors.As.
// Message is the guest's own string rendering of the thrown value (for an
// Error object, "Error: ...").
type GuestError struct {
	Value   value.Value
	Message string
}

func (e *GuestError) Error() string {
	if e.Message != "" {
		return "exception thrown: " + e.Message
	}
	return "exception thrown: " + e.Value.String()
}
