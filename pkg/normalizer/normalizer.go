// Package normalizer converts editor node graphs into engine task trees.
package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tcmartin/flowstudio/pkg/models"
)

// editorFields never reach the emitted tree, whatever the catalog says
var editorFields = map[string]bool{
	"id":         true,
	"label":      true,
	"position":   true,
	"data":       true,
	"selected":   true,
	"dragging":   true,
	"width":      true,
	"height":     true,
	"parentNode": true,
	"taskType":   true,
	"config":     true,
}

// taskListOwners names the task types allowed to carry each nested task
// list. Lists on other types are dropped.
var taskListOwners = map[string][]models.TaskType{
	"decisionCases": {models.TaskTypeDecision, models.TaskTypeSwitch},
	"defaultCase":   {models.TaskTypeDecision, models.TaskTypeSwitch},
	"forkTasks":     {models.TaskTypeForkJoin},
	"loopOver":      {models.TaskTypeDoWhile},
}

// source is one node to normalize, top-level or nested
type source struct {
	id       string
	nodeType string
	taskType string
	label    string
	config   gjson.Result
	path     string
}

// displayName names the node in error messages
func (s source) displayName() string {
	return firstNonEmpty(s.label, s.config.Get("name").String(), s.id, s.config.Get("taskReferenceName").String())
}

type normalizer struct {
	catalog models.FieldCatalog
}

// Normalize converts editor nodes into a workflow definition holding one
// top-level task per node, in node order. Any node whose type cannot be
// resolved aborts the whole conversion. The input is never modified.
func Normalize(nodes []models.EditorNode, catalog models.FieldCatalog) (*models.WorkflowDefinition, error) {
	n := &normalizer{catalog: catalog}

	tasks := make([]models.Task, 0, len(nodes))
	for i, node := range nodes {
		task, err := n.normalizeSource(source{
			id:       node.ID,
			nodeType: node.Type,
			taskType: node.TaskType,
			label:    node.Label,
			config:   parseConfig(node.Config),
			path:     fmt.Sprintf("tasks[%d]", i),
		})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := checkReferences(tasks); err != nil {
		return nil, err
	}

	def := &models.WorkflowDefinition{Tasks: tasks}
	def.SchemaVersion = models.DefaultSchemaVersion
	return def, nil
}

// NormalizeDocument normalizes the document nodes and carries the workflow
// settings over
func NormalizeDocument(doc models.EditorDocument, catalog models.FieldCatalog) (*models.WorkflowDefinition, error) {
	def, err := Normalize(doc.Nodes, catalog)
	if err != nil {
		return nil, err
	}

	def.WorkflowMetadata = doc.Workflow
	if def.SchemaVersion == 0 {
		def.SchemaVersion = models.DefaultSchemaVersion
	}
	return def, nil
}

// exactValue decodes a config value keeping numbers as json.Number, so
// integers beyond float64 precision are written back unchanged
func exactValue(value gjson.Result) any {
	if !value.Exists() {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader([]byte(value.Raw)))
	decoder.UseNumber()
	var v any
	if err := decoder.Decode(&v); err != nil {
		return value.Value()
	}
	return v
}

func parseConfig(raw []byte) gjson.Result {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return gjson.Parse("{}")
	}
	result := gjson.ParseBytes(raw)
	if !result.IsObject() {
		return gjson.Parse("{}")
	}
	return result
}

// normalizeSource resolves, cleans and defaults one node and everything
// nested below it
func (n *normalizer) normalizeSource(src source) (models.Task, error) {
	taskType, err := resolveType(src)
	if err != nil {
		return models.Task{}, err
	}

	ref := firstNonEmpty(src.id, src.config.Get("taskReferenceName").String())
	if ref == "" {
		return models.Task{}, &TaskError{Kind: ErrMissingReference, Task: src.displayName(), Path: src.path}
	}

	task := models.Task{
		Name:              firstNonEmpty(src.config.Get("name").String(), src.label, ref),
		TaskReferenceName: ref,
		Type:              taskType,
	}

	var requests []gjson.Result
	src.config.ForEach(func(key, value gjson.Result) bool {
		field := key.String()
		switch {
		case editorFields[field]:
		case field == "name" || field == "taskReferenceName" || field == "type":
		case n.catalog.Has(field):
			err = n.setField(&task, field, value, src.path)
		case isRequestObject(field, value):
			requests = append(requests, value)
		}
		return err == nil
	})
	if err != nil {
		return models.Task{}, err
	}

	if len(requests) > 0 {
		params := make(map[string]any, len(task.InputParameters))
		for key, value := range task.InputParameters {
			params[key] = value
		}
		for _, request := range requests {
			request.ForEach(func(key, value gjson.Result) bool {
				params[key.String()] = exactValue(value)
				return true
			})
		}
		task.InputParameters = params
	}

	ApplyDefaults(&task)
	return task, nil
}

// setField copies one catalog field from the config onto the task
func (n *normalizer) setField(task *models.Task, field string, value gjson.Result, path string) error {
	if owners, ok := taskListOwners[field]; ok && !ownedBy(task.Type, owners) {
		return nil
	}

	switch field {
	case "description":
		if value.Type != gjson.Null {
			description := value.String()
			task.Description = &description
		}
	case "inputParameters":
		if params, ok := exactValue(value).(map[string]any); ok {
			task.InputParameters = params
		}
	case "optional":
		task.Optional = value.Bool()
	case "asyncComplete":
		task.AsyncComplete = value.Bool()
	case "startDelay":
		task.StartDelay = int(value.Int())
	case "retryCount":
		if value.Type == gjson.Number {
			retries := int(value.Int())
			task.RetryCount = &retries
		}
	case "evaluatorType":
		task.EvaluatorType = value.String()
	case "expression":
		task.Expression = value.String()
	case "caseValueParam":
		task.CaseValueParam = value.String()
	case "caseExpression":
		task.CaseExpression = value.String()
	case "loopCondition":
		task.LoopCondition = value.String()
	case "dynamicTaskNameParam":
		task.DynamicTaskNameParam = value.String()
	case "dynamicForkTasksParam":
		task.DynamicForkTasksParam = value.String()
	case "dynamicForkTasksInputParamName":
		task.DynamicForkTasksInputParamName = value.String()
	case "sink":
		task.Sink = value.String()
	case "joinOn":
		joinOn := []string{}
		for _, ref := range value.Array() {
			joinOn = append(joinOn, ref.String())
		}
		task.JoinOn = joinOn
	case "subWorkflowParam":
		params := &models.SubWorkflowParams{Name: value.Get("name").String()}
		if version := value.Get("version"); version.Type == gjson.Number {
			v := int(version.Int())
			params.Version = &v
		}
		task.SubWorkflowParam = params
	case "decisionCases":
		cases := models.NewDecisionCases()
		var err error
		value.ForEach(func(key, entries gjson.Result) bool {
			var list []models.Task
			list, err = n.normalizeList(entries, path+".decisionCases."+key.String())
			if err == nil {
				cases.Set(key.String(), list)
			}
			return err == nil
		})
		if err != nil {
			return err
		}
		task.DecisionCases = cases
	case "defaultCase":
		list, err := n.normalizeList(value, path+".defaultCase")
		if err != nil {
			return err
		}
		task.DefaultCase = list
	case "loopOver":
		list, err := n.normalizeList(value, path+".loopOver")
		if err != nil {
			return err
		}
		task.LoopOver = list
	case "forkTasks":
		branches := [][]models.Task{}
		for i, branch := range value.Array() {
			list, err := n.normalizeList(branch, fmt.Sprintf("%s.forkTasks[%d]", path, i))
			if err != nil {
				return err
			}
			branches = append(branches, list)
		}
		task.ForkTasks = branches
	default:
		if task.Extra == nil {
			task.Extra = make(map[string]any)
		}
		task.Extra[field] = exactValue(value)
	}
	return nil
}

// normalizeList normalizes a nested task list. A single object stands for
// a one-entry list.
func (n *normalizer) normalizeList(value gjson.Result, path string) ([]models.Task, error) {
	entries := value.Array()
	tasks := make([]models.Task, 0, len(entries))
	for i, entry := range entries {
		task, err := n.normalizeSource(nestedSource(entry, fmt.Sprintf("%s[%d]", path, i)))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// nestedSource reads a nested entry. Node-shaped entries keep their task
// fields under config; flat entries are task objects themselves.
func nestedSource(entry gjson.Result, path string) source {
	src := source{
		taskType: entry.Get("taskType").String(),
		label:    entry.Get("label").String(),
		path:     path,
	}

	if config := entry.Get("config"); config.IsObject() {
		src.id = entry.Get("id").String()
		src.nodeType = entry.Get("type").String()
		src.config = config
		return src
	}

	src.id = firstNonEmpty(entry.Get("taskReferenceName").String(), entry.Get("id").String())
	if entry.IsObject() {
		src.config = entry
	} else {
		src.config = gjson.Parse("{}")
	}
	return src
}

// resolveType picks the task type from the explicit taskType, then the
// config type, then the canvas node type when it names a catalog type
func resolveType(src source) (models.TaskType, error) {
	explicit := firstNonEmpty(src.taskType, src.config.Get("type").String())
	if explicit != "" {
		if taskType, ok := models.ParseTaskType(explicit); ok {
			return taskType, nil
		}
		return "", unresolvedType(src.displayName(), src.path, fmt.Sprintf("unknown type '%s'", explicit))
	}

	if taskType, ok := models.ParseTaskType(src.nodeType); ok {
		return taskType, nil
	}
	return "", unresolvedType(src.displayName(), src.path, "no taskType or config type set")
}

// isRequestObject reports whether an unknown field holds a nested request
// object whose keys belong in inputParameters
func isRequestObject(field string, value gjson.Result) bool {
	if !value.IsObject() {
		return false
	}
	return strings.HasSuffix(field, "_request") || strings.HasSuffix(field, "Request")
}

func ownedBy(taskType models.TaskType, owners []models.TaskType) bool {
	for _, owner := range owners {
		if owner == taskType {
			return true
		}
	}
	return false
}

// checkReferences rejects reference names used more than once anywhere in
// the tree
func checkReferences(tasks []models.Task) error {
	err := models.ValidateReferenceNames(tasks)
	var dup *models.DuplicateReferenceError
	if errors.As(err, &dup) {
		return &TaskError{
			Kind:   ErrDuplicateReference,
			Task:   dup.TaskReferenceName,
			Path:   dup.Path,
			Detail: "first used at " + dup.FirstPath,
		}
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
