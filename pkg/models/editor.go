package models

import "encoding/json"

// Position is the canvas location of an editor node
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EditorNode is a task as the visual editor stores it. Config holds the
// authored task substructure as a raw JSON object; nested entries under
// loopOver, forkTasks, decisionCases and defaultCase are node-shaped objects
// and may carry editor fields of their own.
type EditorNode struct {
	// ID becomes the task reference name
	ID string `json:"id"`

	// Type is the canvas node kind. It only counts as a task type when it
	// names a catalog type.
	Type string `json:"type,omitempty"`

	// TaskType is the explicit task type chosen in the editor
	TaskType string `json:"taskType,omitempty"`

	Label    string          `json:"label,omitempty"`
	Position *Position       `json:"position,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// EditorDocument is what the editor saves: workflow settings plus the
// ordered top-level nodes
type EditorDocument struct {
	Workflow WorkflowMetadata `json:"workflow"`
	Nodes    []EditorNode     `json:"nodes"`
}
