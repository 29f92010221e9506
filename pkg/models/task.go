package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DecisionCases maps a case label to the ordered tasks run for it. Iteration
// and JSON encoding follow insertion order.
type DecisionCases = orderedmap.OrderedMap[string, []Task]

// NewDecisionCases creates an empty case map
func NewDecisionCases() *DecisionCases {
	return orderedmap.New[string, []Task]()
}

// SubWorkflowParams names the workflow a SUB_WORKFLOW task starts
type SubWorkflowParams struct {
	// Name of the child workflow
	Name string `json:"name"`

	// Version of the child workflow; null means latest
	Version *int `json:"version"`
}

// Task is one step of a workflow definition. Type-specific fields are only
// meaningful for the types that declare them (see RequiredFields).
type Task struct {
	// Name is the display name of the task
	Name string `json:"name"`

	// TaskReferenceName identifies the task inside its workflow
	TaskReferenceName string `json:"taskReferenceName"`

	// Type of the task
	Type TaskType `json:"type"`

	// Description is emitted as null when unset
	Description *string `json:"description"`

	// InputParameters passed to the task
	InputParameters map[string]any `json:"inputParameters"`

	Optional      bool `json:"optional"`
	AsyncComplete bool `json:"asyncComplete"`
	StartDelay    int  `json:"startDelay"`
	RetryCount    *int `json:"retryCount,omitempty"`

	// SWITCH
	EvaluatorType string `json:"evaluatorType,omitempty"`
	Expression    string `json:"expression,omitempty"`

	// DECISION
	CaseValueParam string `json:"caseValueParam,omitempty"`
	CaseExpression string `json:"caseExpression,omitempty"`

	// DECISION and SWITCH
	DecisionCases *DecisionCases `json:"decisionCases,omitempty"`
	DefaultCase   []Task         `json:"defaultCase,omitempty"`

	// FORK_JOIN
	ForkTasks [][]Task `json:"forkTasks,omitempty"`

	// JOIN
	JoinOn []string `json:"joinOn,omitempty"`

	// DO_WHILE
	LoopCondition string `json:"loopCondition,omitempty"`
	LoopOver      []Task `json:"loopOver,omitempty"`

	// DYNAMIC
	DynamicTaskNameParam string `json:"dynamicTaskNameParam,omitempty"`

	// FORK_JOIN_DYNAMIC
	DynamicForkTasksParam          string `json:"dynamicForkTasksParam,omitempty"`
	DynamicForkTasksInputParamName string `json:"dynamicForkTasksInputParamName,omitempty"`

	// SUB_WORKFLOW
	SubWorkflowParam *SubWorkflowParams `json:"subWorkflowParam,omitempty"`

	// EVENT
	Sink string `json:"sink,omitempty"`

	// Extra holds catalog fields without a dedicated slot. They are written
	// inline after the fields above, sorted by key.
	Extra map[string]any `json:"-"`
}

// taskFields lists the JSON keys owned by the Task struct
var taskFields = map[string]bool{
	"name":                           true,
	"taskReferenceName":              true,
	"type":                           true,
	"description":                    true,
	"inputParameters":                true,
	"optional":                       true,
	"asyncComplete":                  true,
	"startDelay":                     true,
	"retryCount":                     true,
	"evaluatorType":                  true,
	"expression":                     true,
	"caseValueParam":                 true,
	"caseExpression":                 true,
	"decisionCases":                  true,
	"defaultCase":                    true,
	"forkTasks":                      true,
	"joinOn":                         true,
	"loopCondition":                  true,
	"loopOver":                       true,
	"dynamicTaskNameParam":           true,
	"dynamicForkTasksParam":          true,
	"dynamicForkTasksInputParamName": true,
	"subWorkflowParam":               true,
	"sink":                           true,
}

// IsTaskField reports whether key is one of the Task struct's JSON fields
func IsTaskField(key string) bool {
	return taskFields[key]
}

// MarshalJSON writes the task with a fixed field order. Nil type-specific
// collections are omitted while empty non-nil ones are written, so an
// explicitly empty branch list survives a round trip.
func (t Task) MarshalJSON() ([]byte, error) {
	out := orderedmap.New[string, any]()
	out.Set("name", t.Name)
	out.Set("taskReferenceName", t.TaskReferenceName)
	out.Set("type", t.Type)
	out.Set("description", t.Description)

	params := t.InputParameters
	if params == nil {
		params = map[string]any{}
	}
	out.Set("inputParameters", params)
	out.Set("optional", t.Optional)
	out.Set("asyncComplete", t.AsyncComplete)
	out.Set("startDelay", t.StartDelay)
	if t.RetryCount != nil {
		out.Set("retryCount", *t.RetryCount)
	}

	declared := declaredFields[t.Type]
	setString := func(key, value string) {
		if value != "" || declared[key] {
			out.Set(key, value)
		}
	}

	setString("evaluatorType", t.EvaluatorType)
	setString("expression", t.Expression)
	setString("caseValueParam", t.CaseValueParam)
	setString("caseExpression", t.CaseExpression)
	if t.DecisionCases != nil {
		out.Set("decisionCases", t.DecisionCases)
	}
	if t.DefaultCase != nil {
		out.Set("defaultCase", t.DefaultCase)
	}
	if t.ForkTasks != nil {
		out.Set("forkTasks", t.ForkTasks)
	}
	if t.JoinOn != nil {
		out.Set("joinOn", t.JoinOn)
	}
	setString("loopCondition", t.LoopCondition)
	if t.LoopOver != nil {
		out.Set("loopOver", t.LoopOver)
	}
	setString("dynamicTaskNameParam", t.DynamicTaskNameParam)
	setString("dynamicForkTasksParam", t.DynamicForkTasksParam)
	setString("dynamicForkTasksInputParamName", t.DynamicForkTasksInputParamName)
	if t.SubWorkflowParam != nil {
		out.Set("subWorkflowParam", t.SubWorkflowParam)
	}
	setString("sink", t.Sink)

	keys := make([]string, 0, len(t.Extra))
	for key := range t.Extra {
		if !taskFields[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		out.Set(key, t.Extra[key])
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes a task, keeping unknown fields in Extra
func (t *Task) UnmarshalJSON(data []byte) error {
	type plainTask Task
	var decoded plainTask
	if err := decodeExact(data, &decoded); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, value := range raw {
		if taskFields[key] {
			continue
		}
		var v any
		if err := decodeExact(value, &v); err != nil {
			return fmt.Errorf("failed to decode task field '%s': %w", key, err)
		}
		if decoded.Extra == nil {
			decoded.Extra = make(map[string]any)
		}
		decoded.Extra[key] = v
	}

	*t = Task(decoded)
	return nil
}

// decodeExact unmarshals data keeping numbers as json.Number
func decodeExact(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder.Decode(v)
}

// DisplayName returns the name shown for the task, falling back to its
// reference name
func (t Task) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.TaskReferenceName
}
