// Package models defines the task-tree data model shared by the normalizer,
// the flowchart renderer and the studio's storage and transport layers.
package models

import "strings"

// TaskType identifies the kind of a workflow task
type TaskType string

// Task types understood by the orchestration engine
const (
	TaskTypeSimple          TaskType = "SIMPLE"
	TaskTypeHTTP            TaskType = "HTTP"
	TaskTypeDecision        TaskType = "DECISION"
	TaskTypeSwitch          TaskType = "SWITCH"
	TaskTypeForkJoin        TaskType = "FORK_JOIN"
	TaskTypeForkJoinDynamic TaskType = "FORK_JOIN_DYNAMIC"
	TaskTypeJoin            TaskType = "JOIN"
	TaskTypeExclusiveJoin   TaskType = "EXCLUSIVE_JOIN"
	TaskTypeDoWhile         TaskType = "DO_WHILE"
	TaskTypeDynamic         TaskType = "DYNAMIC"
	TaskTypeTerminate       TaskType = "TERMINATE"
	TaskTypeSubWorkflow     TaskType = "SUB_WORKFLOW"
	TaskTypeStartWorkflow   TaskType = "START_WORKFLOW"
	TaskTypeSetVariable     TaskType = "SET_VARIABLE"
	TaskTypeWait            TaskType = "WAIT"
	TaskTypeEvent           TaskType = "EVENT"
	TaskTypeInline          TaskType = "INLINE"
	TaskTypeLambda          TaskType = "LAMBDA"
	TaskTypeHuman           TaskType = "HUMAN"
	TaskTypeNoop            TaskType = "NOOP"
	TaskTypeKafkaPublish    TaskType = "KAFKA_PUBLISH"
	TaskTypeJSONJQTransform TaskType = "JSON_JQ_TRANSFORM"
)

// AllTaskTypes lists the closed task type catalog in a stable order
var AllTaskTypes = []TaskType{
	TaskTypeSimple,
	TaskTypeHTTP,
	TaskTypeDecision,
	TaskTypeSwitch,
	TaskTypeForkJoin,
	TaskTypeForkJoinDynamic,
	TaskTypeJoin,
	TaskTypeExclusiveJoin,
	TaskTypeDoWhile,
	TaskTypeDynamic,
	TaskTypeTerminate,
	TaskTypeSubWorkflow,
	TaskTypeStartWorkflow,
	TaskTypeSetVariable,
	TaskTypeWait,
	TaskTypeEvent,
	TaskTypeInline,
	TaskTypeLambda,
	TaskTypeHuman,
	TaskTypeNoop,
	TaskTypeKafkaPublish,
	TaskTypeJSONJQTransform,
}

var knownTaskTypes = func() map[TaskType]bool {
	known := make(map[TaskType]bool, len(AllTaskTypes))
	for _, t := range AllTaskTypes {
		known[t] = true
	}
	return known
}()

// ParseTaskType normalizes a raw type string. Types outside the catalog
// return "" and false.
func ParseTaskType(raw string) (TaskType, bool) {
	t := TaskType(strings.ToUpper(strings.TrimSpace(raw)))
	if !knownTaskTypes[t] {
		return "", false
	}
	return t, true
}

// IsKnown reports whether the type belongs to the catalog
func (t TaskType) IsKnown() bool {
	return knownTaskTypes[t]
}

// IsBranching reports whether the type carries decision cases
func (t TaskType) IsBranching() bool {
	return t == TaskTypeDecision || t == TaskTypeSwitch
}

// IsJoin reports whether the type waits on other tasks
func (t TaskType) IsJoin() bool {
	return t == TaskTypeJoin || t == TaskTypeExclusiveJoin
}

func (t TaskType) String() string {
	return string(t)
}
