package core

import "fmt"

// FetchError means listing live state for one kind failed. The kind is
// skipped and the run continues with the remaining kinds.
type FetchError struct {
	Kind Kind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching live %s state: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError aborts the entire run before any mutation. Problems holds
// one line per broken cross-reference.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	msg := "configuration validation failed:"
	for _, p := range e.Problems {
		msg += "\n- " + p
	}
	return msg
}

// ResolutionError means a role's set name could not be resolved to an id
// even after set creation. Only that role is skipped.
type ResolutionError struct {
	Role string
	Ref  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("role %q: unresolved dependency %q", e.Role, e.Ref)
}

// ApplyError wraps a single failed mutation. The batch continues.
type ApplyError struct {
	Item DiffItem
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("applying %s %s %q: %v", e.Item.Action, e.Item.Kind, e.Item.Name, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }
