package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() []Task {
	cases := NewDecisionCases()
	cases.Set("yes", []Task{{Name: "y", TaskReferenceName: "y", Type: TaskTypeSimple}})
	cases.Set("no", []Task{{Name: "n", TaskReferenceName: "n", Type: TaskTypeSimple}})

	return []Task{
		{Name: "first", TaskReferenceName: "first", Type: TaskTypeSimple},
		{
			Name:              "decide",
			TaskReferenceName: "decide",
			Type:              TaskTypeSwitch,
			DecisionCases:     cases,
			DefaultCase:       []Task{{Name: "d", TaskReferenceName: "d", Type: TaskTypeSimple}},
		},
		{
			Name:              "fork",
			TaskReferenceName: "fork",
			Type:              TaskTypeForkJoin,
			ForkTasks: [][]Task{
				{{Name: "b0", TaskReferenceName: "b0", Type: TaskTypeSimple}},
				{{Name: "b1", TaskReferenceName: "b1", Type: TaskTypeSimple}},
			},
		},
		{
			Name:              "loop",
			TaskReferenceName: "loop",
			Type:              TaskTypeDoWhile,
			LoopOver:          []Task{{Name: "body", TaskReferenceName: "body", Type: TaskTypeSimple}},
		},
	}
}

func TestWalkPreOrder(t *testing.T) {
	var refs, paths []string
	err := Walk(sampleTree(), func(path string, task Task) error {
		refs = append(refs, task.TaskReferenceName)
		paths = append(paths, path)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "decide", "y", "n", "d", "fork", "b0", "b1", "loop", "body"}, refs)
	assert.Equal(t, "tasks[1].decisionCases.yes[0]", paths[2])
	assert.Equal(t, "tasks[1].defaultCase[0]", paths[4])
	assert.Equal(t, "tasks[2].forkTasks[1][0]", paths[7])
	assert.Equal(t, "tasks[3].loopOver[0]", paths[9])
}

func TestWalkStopsOnError(t *testing.T) {
	stop := errors.New("stop")
	visited := 0
	err := Walk(sampleTree(), func(string, Task) error {
		visited++
		if visited == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, visited)
}

func TestValidateReferenceNames(t *testing.T) {
	tree := sampleTree()
	require.NoError(t, ValidateReferenceNames(tree))

	tree[3].LoopOver[0].TaskReferenceName = "y"
	err := ValidateReferenceNames(tree)
	require.Error(t, err)

	var dup *DuplicateReferenceError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "y", dup.TaskReferenceName)
	assert.Equal(t, "tasks[1].decisionCases.yes[0]", dup.FirstPath)
	assert.Equal(t, "tasks[3].loopOver[0]", dup.Path)
}

func TestRequiredFields(t *testing.T) {
	fields := RequiredFields(TaskTypeSwitch)
	assert.Contains(t, fields, "taskReferenceName")
	assert.Contains(t, fields, "decisionCases")
	assert.Contains(t, fields, "evaluatorType")

	assert.Equal(t, baseFields, RequiredFields(TaskTypeSimple))
}

func TestCheckRequired(t *testing.T) {
	task := Task{Name: "loop", TaskReferenceName: "loop", Type: TaskTypeDoWhile}
	err := CheckRequired(task)
	require.Error(t, err)

	var missing *MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"loopOver"}, missing.Fields)

	task.LoopCondition = "false"
	task.LoopOver = []Task{}
	assert.NoError(t, CheckRequired(task))

	terminate := Task{Name: "t", TaskReferenceName: "t", Type: TaskTypeTerminate}
	assert.Error(t, CheckRequired(terminate))
	terminate.InputParameters = map[string]any{"terminationStatus": "COMPLETED"}
	assert.NoError(t, CheckRequired(terminate))
}

func TestFieldCatalog(t *testing.T) {
	catalog := DefaultFieldCatalog()
	assert.True(t, catalog.Has("taskReferenceName"))
	assert.True(t, catalog.Has("rateLimited"))
	assert.False(t, catalog.Has("position"))

	extended := catalog.With("position")
	assert.True(t, extended.Has("position"))
	assert.False(t, catalog.Has("position"))
	assert.Equal(t, catalog.Len()+1, extended.Len())

	custom := NewFieldCatalog("name", "", "type")
	assert.Equal(t, []string{"name", "type"}, custom.Fields())
}

func TestWorkflowDefinitionTaskCount(t *testing.T) {
	def := &WorkflowDefinition{Tasks: sampleTree()}
	assert.Equal(t, 10, def.TaskCount())
}
