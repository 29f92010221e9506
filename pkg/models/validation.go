package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// baseFields are present on every emitted task
var baseFields = []string{
	"name",
	"taskReferenceName",
	"type",
	"description",
	"inputParameters",
	"optional",
	"asyncComplete",
	"startDelay",
}

// typeFields lists, per task type, the fields the type declares. Dotted
// entries are paths below inputParameters.
var typeFields = map[TaskType][]string{
	TaskTypeSwitch:          {"evaluatorType", "expression", "decisionCases", "defaultCase"},
	TaskTypeDecision:        {"caseValueParam", "decisionCases", "defaultCase"},
	TaskTypeForkJoin:        {"forkTasks"},
	TaskTypeJoin:            {"joinOn"},
	TaskTypeExclusiveJoin:   {"joinOn"},
	TaskTypeDoWhile:         {"loopCondition", "loopOver"},
	TaskTypeDynamic:         {"dynamicTaskNameParam"},
	TaskTypeForkJoinDynamic: {"dynamicForkTasksParam", "dynamicForkTasksInputParamName"},
	TaskTypeSubWorkflow:     {"subWorkflowParam"},
	TaskTypeEvent:           {"sink"},
	TaskTypeTerminate:       {"inputParameters.terminationStatus"},
	TaskTypeInline:          {"inputParameters.evaluatorType", "inputParameters.expression"},
	TaskTypeLambda:          {"inputParameters.evaluatorType", "inputParameters.expression"},
}

// declaredFields is typeFields as a lookup set
var declaredFields = func() map[TaskType]map[string]bool {
	sets := make(map[TaskType]map[string]bool, len(typeFields))
	for taskType, fields := range typeFields {
		set := make(map[string]bool, len(fields))
		for _, field := range fields {
			set[field] = true
		}
		sets[taskType] = set
	}
	return sets
}()

// RequiredFields returns every field a task of the given type must carry
// once normalized
func RequiredFields(taskType TaskType) []string {
	fields := make([]string, 0, len(baseFields)+len(typeFields[taskType]))
	fields = append(fields, baseFields...)
	return append(fields, typeFields[taskType]...)
}

// MissingFieldsError lists the required fields absent from a task
type MissingFieldsError struct {
	TaskReferenceName string
	Fields            []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("task '%s' is missing required fields: %s", e.TaskReferenceName, strings.Join(e.Fields, ", "))
}

// CheckRequired verifies that the marshalled form of task defines every
// field its type requires. Only description may be null.
func CheckRequired(task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	var missing []string
	for _, field := range RequiredFields(task.Type) {
		result := gjson.GetBytes(data, field)
		if !result.Exists() {
			missing = append(missing, field)
			continue
		}
		if result.Type == gjson.Null && field != "description" {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		return &MissingFieldsError{TaskReferenceName: task.TaskReferenceName, Fields: missing}
	}
	return nil
}

// WalkFunc is called for every task visited by Walk. Returning an error
// stops the walk.
type WalkFunc func(path string, task Task) error

// Walk visits the nested task tree depth first in pre-order. Paths look like
// tasks[2].decisionCases.approved[0].
func Walk(tasks []Task, fn WalkFunc) error {
	return walkList("tasks", tasks, fn)
}

func walkList(prefix string, tasks []Task, fn WalkFunc) error {
	for i, task := range tasks {
		if err := walkTask(fmt.Sprintf("%s[%d]", prefix, i), task, fn); err != nil {
			return err
		}
	}
	return nil
}

func walkTask(path string, task Task, fn WalkFunc) error {
	if err := fn(path, task); err != nil {
		return err
	}

	if task.DecisionCases != nil {
		for pair := task.DecisionCases.Oldest(); pair != nil; pair = pair.Next() {
			if err := walkList(path+".decisionCases."+pair.Key, pair.Value, fn); err != nil {
				return err
			}
		}
	}
	if err := walkList(path+".defaultCase", task.DefaultCase, fn); err != nil {
		return err
	}
	for i, branch := range task.ForkTasks {
		if err := walkList(fmt.Sprintf("%s.forkTasks[%d]", path, i), branch, fn); err != nil {
			return err
		}
	}
	return walkList(path+".loopOver", task.LoopOver, fn)
}

// DuplicateReferenceError reports a reference name used more than once
type DuplicateReferenceError struct {
	TaskReferenceName string
	FirstPath         string
	Path              string
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("duplicate task reference name '%s' at %s (first used at %s)", e.TaskReferenceName, e.Path, e.FirstPath)
}

// ValidateReferenceNames checks that reference names are unique across the
// whole nested tree
func ValidateReferenceNames(tasks []Task) error {
	seen := make(map[string]string)
	return Walk(tasks, func(path string, task Task) error {
		if first, ok := seen[task.TaskReferenceName]; ok {
			return &DuplicateReferenceError{
				TaskReferenceName: task.TaskReferenceName,
				FirstPath:         first,
				Path:              path,
			}
		}
		seen[task.TaskReferenceName] = path
		return nil
	})
}

// CheckTree runs CheckRequired on every task of the nested tree
func CheckTree(tasks []Task) error {
	return Walk(tasks, func(path string, task Task) error {
		if err := CheckRequired(task); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	})
}
