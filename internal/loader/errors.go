package loader

import (
	"fmt"
)

// MissingClasspathError is returned when a processor's tool jar or
// classpath entry does not exist on disk.
type MissingClasspathError struct {
	Processor string // tool coordinate
	Path      string
}

func (e *MissingClasspathError) Error() string {
	return fmt.Sprintf("processor %s: missing classpath entry %s", e.Processor, e.Path)
}

// UnresolvedProfileError is returned when a profile or loader metadata
// document lacks an expected field, or a template token has no value.
type UnresolvedProfileError struct {
	Loader string
	Field  string
	Err    error
}

func (e *UnresolvedProfileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s profile: unresolved %s: %v", e.Loader, e.Field, e.Err)
	}
	return fmt.Sprintf("%s profile: unresolved %s", e.Loader, e.Field)
}

func (e *UnresolvedProfileError) Unwrap() error { return e.Err }

// ProcessError is returned when a processor exits unsuccessfully or its
// declared outputs do not verify. Processors are never retried.
type ProcessError struct {
	Processor string
	MainClass string
	ExitCode  int // -1 when the process did not exit normally
	Output    string
	Err       error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("processor %s (%s): exit %d: %v", e.Processor, e.MainClass, e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }
