package models

// WorkflowMetadata holds the definition-level settings the studio passes
// through to the engine untouched
type WorkflowMetadata struct {
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	Version          int            `json:"version"`
	SchemaVersion    int            `json:"schemaVersion"`
	InputParameters  []string       `json:"inputParameters,omitempty"`
	OutputParameters map[string]any `json:"outputParameters,omitempty"`
	TimeoutSeconds   int64          `json:"timeoutSeconds"`
	TimeoutPolicy    string         `json:"timeoutPolicy,omitempty"`
	Restartable      *bool          `json:"restartable,omitempty"`
	OwnerEmail       string         `json:"ownerEmail,omitempty"`
	FailureWorkflow  string         `json:"failureWorkflow,omitempty"`
	Variables        map[string]any `json:"variables,omitempty"`
}

// DefaultSchemaVersion is the engine schema version written when none is set
const DefaultSchemaVersion = 2

// WorkflowDefinition is a complete engine workflow definition
type WorkflowDefinition struct {
	WorkflowMetadata

	// Tasks is the top-level task sequence
	Tasks []Task `json:"tasks"`
}

// TaskCount returns the number of tasks in the nested tree
func (d *WorkflowDefinition) TaskCount() int {
	count := 0
	_ = Walk(d.Tasks, func(string, Task) error {
		count++
		return nil
	})
	return count
}
