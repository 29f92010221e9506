package models

// TaskStatus is the execution status an engine reports for a task
type TaskStatus string

const (
	TaskStatusScheduled  TaskStatus = "SCHEDULED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusSkipped    TaskStatus = "SKIPPED"
	TaskStatusCanceled   TaskStatus = "CANCELED"
	TaskStatusTimedOut   TaskStatus = "TIMED_OUT"
)

// AllTaskStatuses lists the statuses with a predefined diagram style
var AllTaskStatuses = []TaskStatus{
	TaskStatusScheduled,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusFailed,
	TaskStatusSkipped,
	TaskStatusCanceled,
	TaskStatusTimedOut,
}
