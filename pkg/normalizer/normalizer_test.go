package normalizer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcmartin/flowstudio/pkg/models"
)

func node(id, taskType, config string) models.EditorNode {
	n := models.EditorNode{ID: id, Type: "task", TaskType: taskType, Label: id + " label"}
	if config != "" {
		n.Config = json.RawMessage(config)
	}
	return n
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestNormalizeSimpleTask(t *testing.T) {
	nodes := []models.EditorNode{{
		ID:     "a",
		Config: json.RawMessage(`{"name":"A","taskReferenceName":"a","type":"SIMPLE"}`),
	}}

	def, err := Normalize(nodes, models.DefaultFieldCatalog())
	require.NoError(t, err)
	require.Len(t, def.Tasks, 1)

	task := def.Tasks[0]
	assert.Equal(t, "A", task.Name)
	assert.Equal(t, "a", task.TaskReferenceName)
	assert.Equal(t, models.TaskTypeSimple, task.Type)
	assert.False(t, task.Optional)
	assert.False(t, task.AsyncComplete)
	assert.Equal(t, map[string]any{}, task.InputParameters)
	assert.Nil(t, task.Description)
	assert.Equal(t, models.DefaultSchemaVersion, def.SchemaVersion)

	assert.Equal(t,
		`[{"name":"A","taskReferenceName":"a","type":"SIMPLE","description":null,"inputParameters":{},"optional":false,"asyncComplete":false,"startDelay":0}]`,
		mustJSON(t, def.Tasks))
}

func TestNormalizeUnresolvedType(t *testing.T) {
	nodes := []models.EditorNode{
		node("ok", "SIMPLE", ""),
		{ID: "n2", Type: "taskNode", Label: "Charge card", Config: json.RawMessage(`{"inputParameters":{"x":1}}`)},
	}

	def, err := Normalize(nodes, models.DefaultFieldCatalog())
	require.Error(t, err)
	assert.Nil(t, def)
	assert.True(t, errors.Is(err, ErrUnresolvedTaskType))
	assert.Contains(t, err.Error(), "Charge card")

	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr))
	assert.Equal(t, "tasks[1]", taskErr.Path)
	assert.Equal(t, "Charge card", taskErr.Task)
}

func TestNormalizeUnknownExplicitType(t *testing.T) {
	_, err := Normalize([]models.EditorNode{node("x", "NOT_A_TYPE", "")}, models.DefaultFieldCatalog())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvedTaskType)
	assert.Contains(t, err.Error(), "NOT_A_TYPE")
}

func TestNormalizeTypeResolutionOrder(t *testing.T) {
	tests := []struct {
		name     string
		node     models.EditorNode
		expected models.TaskType
	}{
		{"taskType wins", models.EditorNode{ID: "a", Type: "WAIT", TaskType: "HTTP", Config: json.RawMessage(`{"type":"SIMPLE"}`)}, models.TaskTypeHTTP},
		{"config type next", models.EditorNode{ID: "a", Type: "WAIT", Config: json.RawMessage(`{"type":"SIMPLE"}`)}, models.TaskTypeSimple},
		{"catalog node type last", models.EditorNode{ID: "a", Type: "wait"}, models.TaskTypeWait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Normalize([]models.EditorNode{tt.node}, models.DefaultFieldCatalog())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, def.Tasks[0].Type)
		})
	}
}

func TestNormalizeNestedUnresolvedType(t *testing.T) {
	config := `{"loopOver":[{"taskReferenceName":"ok","type":"SIMPLE"},{"taskReferenceName":"body","label":"Body step"}]}`
	_, err := Normalize([]models.EditorNode{node("loop", "DO_WHILE", config)}, models.DefaultFieldCatalog())
	require.Error(t, err)

	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr))
	assert.Equal(t, ErrUnresolvedTaskType, taskErr.Kind)
	assert.Equal(t, "Body step", taskErr.Task)
	assert.Equal(t, "tasks[0].loopOver[1]", taskErr.Path)
}

func TestNormalizeMergesRequestObject(t *testing.T) {
	config := `{
		"inputParameters": {"uri": "http://old", "keep": true},
		"http_request": {"uri": "https://api.example.com", "method": "POST", "headers": {"X-Trace": "1"}}
	}`

	def, err := Normalize([]models.EditorNode{node("call", "HTTP", config)}, models.DefaultFieldCatalog())
	require.NoError(t, err)

	params := def.Tasks[0].InputParameters
	assert.Equal(t, "https://api.example.com", params["uri"])
	assert.Equal(t, "POST", params["method"])
	assert.Equal(t, map[string]any{"X-Trace": "1"}, params["headers"])
	assert.Equal(t, true, params["keep"])
	assert.NotContains(t, mustJSON(t, def.Tasks[0]), "http_request\":")
}

func TestNormalizeStripsEditorFields(t *testing.T) {
	config := `{
		"position": {"x": 10, "y": 20},
		"selected": true,
		"unknownField": "dropped",
		"rateLimited": true,
		"forkTasks": [[
			{"id": "b0", "label": "Branch zero", "type": "SIMPLE", "position": {"x": 1, "y": 1}, "dragging": false}
		]]
	}`

	def, err := Normalize([]models.EditorNode{node("fork", "FORK_JOIN", config)}, models.DefaultFieldCatalog())
	require.NoError(t, err)

	out := mustJSON(t, def.Tasks)
	for _, field := range []string{"position", "selected", "dragging", "unknownField", `"id"`, `"label"`} {
		assert.NotContains(t, out, field)
	}
	assert.Contains(t, out, `"rateLimited":true`)

	branch := def.Tasks[0].ForkTasks[0]
	require.Len(t, branch, 1)
	assert.Equal(t, "b0", branch[0].TaskReferenceName)
	assert.Equal(t, "Branch zero", branch[0].Name)
}

func TestNormalizeNodeShapedNestedEntry(t *testing.T) {
	config := `{"loopOver":[{"id":"inner","type":"task","taskType":"INLINE","label":"Compute","config":{"inputParameters":{"expression":"1+1"}}}]}`

	def, err := Normalize([]models.EditorNode{node("loop", "DO_WHILE", config)}, models.DefaultFieldCatalog())
	require.NoError(t, err)

	inner := def.Tasks[0].LoopOver[0]
	assert.Equal(t, "inner", inner.TaskReferenceName)
	assert.Equal(t, "Compute", inner.Name)
	assert.Equal(t, models.TaskTypeInline, inner.Type)
	assert.Equal(t, "1+1", inner.InputParameters["expression"])
	assert.Equal(t, "javascript", inner.InputParameters["evaluatorType"])
}

func TestNormalizeDropsListsNotOwnedByType(t *testing.T) {
	config := `{"loopOver":[{"taskReferenceName":"stale","type":"SIMPLE"}],"decisionCases":{"x":[]}}`

	def, err := Normalize([]models.EditorNode{node("plain", "SIMPLE", config)}, models.DefaultFieldCatalog())
	require.NoError(t, err)
	assert.Nil(t, def.Tasks[0].LoopOver)
	assert.Nil(t, def.Tasks[0].DecisionCases)
}

func TestNormalizePreservesOrder(t *testing.T) {
	config := `{
		"decisionCases": {
			"zulu":  [{"taskReferenceName":"z1","type":"SIMPLE"},{"taskReferenceName":"z2","type":"SIMPLE"}],
			"alpha": [{"taskReferenceName":"a1","type":"SIMPLE"}],
			"mike":  []
		},
		"defaultCase": [{"taskReferenceName":"d2","type":"SIMPLE"},{"taskReferenceName":"d1","type":"SIMPLE"}]
	}`
	nodes := []models.EditorNode{
		node("third", "SIMPLE", ""),
		node("switch", "SWITCH", config),
		node("first", "SIMPLE", ""),
	}

	def, err := Normalize(nodes, models.DefaultFieldCatalog())
	require.NoError(t, err)

	var refs []string
	require.NoError(t, models.Walk(def.Tasks, func(_ string, task models.Task) error {
		refs = append(refs, task.TaskReferenceName)
		return nil
	}))
	assert.Equal(t, []string{"third", "switch", "z1", "z2", "a1", "d2", "d1", "first"}, refs)

	var labels []string
	cases := def.Tasks[1].DecisionCases
	for pair := cases.Oldest(); pair != nil; pair = pair.Next() {
		labels = append(labels, pair.Key)
	}
	assert.Equal(t, []string{"zulu", "alpha", "mike"}, labels)

	mike, ok := cases.Get("mike")
	require.True(t, ok)
	assert.NotNil(t, mike)
	assert.Len(t, mike, 0)
}

func TestNormalizeDuplicateReference(t *testing.T) {
	config := `{"loopOver":[{"taskReferenceName":"a","type":"SIMPLE"}]}`
	nodes := []models.EditorNode{
		node("a", "SIMPLE", ""),
		node("loop", "DO_WHILE", config),
	}

	def, err := Normalize(nodes, models.DefaultFieldCatalog())
	require.Error(t, err)
	assert.Nil(t, def)
	assert.ErrorIs(t, err, ErrDuplicateReference)

	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr))
	assert.Equal(t, "tasks[1].loopOver[0]", taskErr.Path)
}

func TestNormalizeMissingReference(t *testing.T) {
	_, err := Normalize([]models.EditorNode{{TaskType: "SIMPLE", Label: "Nameless"}}, models.DefaultFieldCatalog())
	assert.ErrorIs(t, err, ErrMissingReference)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	config := `{"inputParameters":{"a":1},"http_request":{"b":2}}`
	nodes := []models.EditorNode{node("call", "HTTP", config)}
	before := mustJSON(t, nodes)

	def, err := Normalize(nodes, models.DefaultFieldCatalog())
	require.NoError(t, err)
	def.Tasks[0].InputParameters["c"] = 3

	assert.Equal(t, before, mustJSON(t, nodes))
}

func TestNormalizeIdempotent(t *testing.T) {
	config := `{
		"name": "Outer loop",
		"loopCondition": "true",
		"loopOver": [
			{"id": "fork", "type": "FORK_JOIN", "label": "Fan out", "forkTasks": [
				[{"taskReferenceName": "sw", "type": "SWITCH", "decisionCases": {
					"yes": [{"taskReferenceName": "inner_loop", "type": "DO_WHILE"}],
					"no": [{"taskReferenceName": "stop", "type": "TERMINATE"}]
				}}],
				[{"taskReferenceName": "child", "type": "SUB_WORKFLOW", "position": {"x": 3, "y": 4}}]
			]},
			{"taskReferenceName": "join", "type": "JOIN", "joinOn": ["sw", "child"]}
		]
	}`
	nodes := []models.EditorNode{
		node("start", "HTTP", `{"http_request":{"uri":"http://x"},"retryCount":2,"taskDefinition":{"name":"start"}}`),
		node("outer", "DO_WHILE", config),
		node("done", "EVENT", `{"description":"notify"}`),
	}

	first, err := Normalize(nodes, models.DefaultFieldCatalog())
	require.NoError(t, err)

	wrapped, err := ToEditorNodes(first.Tasks)
	require.NoError(t, err)

	second, err := Normalize(wrapped, models.DefaultFieldCatalog())
	require.NoError(t, err)

	assert.Equal(t, mustJSON(t, first), mustJSON(t, second))
	require.NoError(t, models.CheckTree(second.Tasks))
}

func TestNormalizeTotality(t *testing.T) {
	for _, taskType := range models.AllTaskTypes {
		t.Run(string(taskType), func(t *testing.T) {
			def, err := Normalize([]models.EditorNode{{ID: "t", TaskType: string(taskType)}}, models.DefaultFieldCatalog())
			require.NoError(t, err)
			assert.NoError(t, models.CheckTree(def.Tasks))
		})
	}
}

func TestNormalizeTypeDefaults(t *testing.T) {
	nodes := []models.EditorNode{
		node("sw", "SWITCH", ""),
		node("dec", "DECISION", ""),
		node("fork", "FORK_JOIN", ""),
		node("loop", "DO_WHILE", ""),
		node("child", "SUB_WORKFLOW", `{"name":"Child flow"}`),
		node("stop", "TERMINATE", ""),
		node("ev", "EVENT", ""),
		node("dyn", "FORK_JOIN_DYNAMIC", ""),
	}

	def, err := Normalize(nodes, models.DefaultFieldCatalog())
	require.NoError(t, err)
	tasks := def.Tasks

	assert.Equal(t, "value-param", tasks[0].EvaluatorType)
	assert.Equal(t, "switchCaseValue", tasks[0].Expression)
	assert.Equal(t, 0, tasks[0].DecisionCases.Len())
	assert.Equal(t, []models.Task{}, tasks[0].DefaultCase)

	assert.Equal(t, "switchCaseValue", tasks[1].CaseValueParam)

	assert.Equal(t, [][]models.Task{{}}, tasks[2].ForkTasks)
	assert.Contains(t, mustJSON(t, tasks[2]), `"forkTasks":[[]]`)

	assert.Equal(t, DefaultLoopCondition("loop"), tasks[3].LoopCondition)
	assert.Equal(t, []models.Task{}, tasks[3].LoopOver)

	require.NotNil(t, tasks[4].SubWorkflowParam)
	assert.Equal(t, "Child flow", tasks[4].SubWorkflowParam.Name)
	assert.Nil(t, tasks[4].SubWorkflowParam.Version)

	assert.Equal(t, "COMPLETED", tasks[5].InputParameters["terminationStatus"])
	assert.Equal(t, "conductor", tasks[6].Sink)
	assert.Equal(t, "dynamicTasks", tasks[7].DynamicForkTasksParam)
	assert.Equal(t, "dynamicTasksInput", tasks[7].DynamicForkTasksInputParamName)
}

func TestNormalizeCustomCatalog(t *testing.T) {
	catalog := models.NewFieldCatalog("name", "type", "taskReferenceName", "inputParameters")
	config := `{"inputParameters":{"k":"v"},"optional":true,"rateLimited":true}`

	def, err := Normalize([]models.EditorNode{node("a", "SIMPLE", config)}, catalog)
	require.NoError(t, err)
	assert.False(t, def.Tasks[0].Optional)
	assert.Nil(t, def.Tasks[0].Extra)
	assert.Equal(t, "v", def.Tasks[0].InputParameters["k"])
}

func TestNormalizeDocument(t *testing.T) {
	doc := models.EditorDocument{
		Workflow: models.WorkflowMetadata{Name: "order_flow", Version: 3, OwnerEmail: "ops@example.com"},
		Nodes:    []models.EditorNode{node("a", "SIMPLE", "")},
	}

	def, err := NormalizeDocument(doc, models.DefaultFieldCatalog())
	require.NoError(t, err)
	assert.Equal(t, "order_flow", def.Name)
	assert.Equal(t, 3, def.Version)
	assert.Equal(t, "ops@example.com", def.OwnerEmail)
	assert.Equal(t, models.DefaultSchemaVersion, def.SchemaVersion)
	assert.Len(t, def.Tasks, 1)
}

func TestToEditorNodes(t *testing.T) {
	tasks := []models.Task{
		{Name: "A", TaskReferenceName: "a", Type: models.TaskTypeSimple},
		{Name: "B", TaskReferenceName: "b", Type: models.TaskTypeWait},
	}

	nodes, err := ToEditorNodes(tasks)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "b", nodes[1].ID)
	assert.Equal(t, "WAIT", nodes[1].TaskType)
	assert.Equal(t, float64(nodeSpacing), nodes[1].Position.Y)
	assert.JSONEq(t, mustJSON(t, tasks[0]), string(nodes[0].Config))
}

func TestNormalizeKeepsLargeIntegers(t *testing.T) {
	config := `{
		"inputParameters": {"big": 9007199254740993, "ratio": 0.25},
		"http_request": {"timeout": 12345678901234567},
		"taskDefinition": {"limit": 9007199254740995}
	}`

	def, err := Normalize([]models.EditorNode{node("call", "HTTP", config)}, models.DefaultFieldCatalog())
	require.NoError(t, err)

	params := def.Tasks[0].InputParameters
	assert.Equal(t, json.Number("9007199254740993"), params["big"])
	assert.Equal(t, json.Number("0.25"), params["ratio"])
	assert.Equal(t, json.Number("12345678901234567"), params["timeout"])

	out := mustJSON(t, def.Tasks[0])
	assert.Contains(t, out, `"big":9007199254740993`)
	assert.Contains(t, out, `"timeout":12345678901234567`)
	assert.Contains(t, out, `"taskDefinition":{"limit":9007199254740995}`)

	again, err := Normalize([]models.EditorNode{{ID: "call", Config: json.RawMessage(out)}}, models.DefaultFieldCatalog())
	require.NoError(t, err)
	assert.Equal(t, out, mustJSON(t, again.Tasks[0]))
}
