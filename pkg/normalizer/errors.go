package normalizer

import (
	"errors"
	"fmt"
)

var (
	ErrUnresolvedTaskType = errors.New("unresolved task type")
	ErrDuplicateReference = errors.New("duplicate task reference name")
	ErrMissingReference   = errors.New("missing task reference name")
)

// TaskError reports a task that cannot be normalized. Task names the
// offending task by label, name or id; Path is its position in the tree.
type TaskError struct {
	Kind   error
	Task   string
	Path   string
	Detail string
}

func (e *TaskError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: task '%s' at %s", e.Kind.Error(), e.Task, e.Path)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TaskError) Unwrap() error { return e.Kind }

func unresolvedType(task, path, detail string) error {
	return &TaskError{Kind: ErrUnresolvedTaskType, Task: task, Path: path, Detail: detail}
}
