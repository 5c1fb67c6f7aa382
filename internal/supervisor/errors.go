package supervisor

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by lifecycle and configuration operations.
// Callers match these with errors.Is to choose an HTTP status.
var (
	// ErrAlreadyRunning is returned by Start when a server process is live.
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrNotRunning is returned by Stop when there is nothing to stop.
	ErrNotRunning = errors.New("server is not running")

	// ErrRunning is returned by UpdateConfig and UpdateMods while the
	// server is live. Changes apply only between runs.
	ErrRunning = errors.New("server is running, stop it before applying changes")
)

// SpawnError wraps a failure to launch the server binary, including the
// case where the process dies during the post-spawn grace period.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// DirectoryCreationError wraps a failure to prepare a directory the
// server needs before launch, such as the profiles directory.
type DirectoryCreationError struct {
	Dir string
	Err error
}

func (e *DirectoryCreationError) Error() string {
	return fmt.Sprintf("create directory %s: %v", e.Dir, e.Err)
}

func (e *DirectoryCreationError) Unwrap() error { return e.Err }

// TerminationError wraps a failure to bring a live server process down.
type TerminationError struct {
	PID int
	Err error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("terminate pid %d: %v", e.PID, e.Err)
}

func (e *TerminationError) Unwrap() error { return e.Err }
