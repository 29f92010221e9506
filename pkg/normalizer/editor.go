package normalizer

import (
	"encoding/json"
	"fmt"

	"github.com/tcmartin/flowstudio/pkg/models"
)

// nodeSpacing is the vertical canvas distance between imported nodes
const nodeSpacing = 120

// ToEditorNodes wraps engine tasks back into editor nodes, one per
// top-level task, with the whole task as the node config. Normalizing the
// result yields the same tasks again.
func ToEditorNodes(tasks []models.Task) ([]models.EditorNode, error) {
	nodes := make([]models.EditorNode, 0, len(tasks))
	for i, task := range tasks {
		config, err := json.Marshal(task)
		if err != nil {
			return nil, fmt.Errorf("failed to encode task %d (%s): %w", i, task.TaskReferenceName, err)
		}
		nodes = append(nodes, models.EditorNode{
			ID:       task.TaskReferenceName,
			Type:     "task",
			TaskType: string(task.Type),
			Position: &models.Position{X: 0, Y: float64(i * nodeSpacing)},
			Config:   config,
		})
	}
	return nodes, nil
}

// ToEditorDocument wraps a definition into an editor document
func ToEditorDocument(def *models.WorkflowDefinition) (*models.EditorDocument, error) {
	nodes, err := ToEditorNodes(def.Tasks)
	if err != nil {
		return nil, err
	}
	return &models.EditorDocument{Workflow: def.WorkflowMetadata, Nodes: nodes}, nil
}
