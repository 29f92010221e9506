package normalizer

import (
	"fmt"

	"github.com/tcmartin/flowstudio/pkg/models"
)

const (
	defaultSwitchEvaluator     = "value-param"
	defaultSwitchExpression    = "switchCaseValue"
	defaultCaseValueParam      = "switchCaseValue"
	defaultDynamicTaskParam    = "taskToExecute"
	defaultDynamicForkParam    = "dynamicTasks"
	defaultDynamicForkInput    = "dynamicTasksInput"
	defaultEventSink           = "conductor"
	defaultTerminationStatus   = "COMPLETED"
	defaultScriptEvaluatorType = "javascript"
	defaultLoopIterations      = 3
)

// DefaultLoopCondition returns the loop condition given to a DO_WHILE task
// that has none: a bounded number of iterations of the loop itself.
func DefaultLoopCondition(ref string) string {
	return fmt.Sprintf("if ($.%s['iteration'] < %d) { true; } else { false; }", ref, defaultLoopIterations)
}

// ApplyDefaults fills the base fields and the fields the task's own type
// requires. Values already present are kept. Nested tasks are not visited.
func ApplyDefaults(task *models.Task) {
	if task.InputParameters == nil {
		task.InputParameters = make(map[string]any)
	}

	switch task.Type {
	case models.TaskTypeSwitch:
		if task.EvaluatorType == "" {
			task.EvaluatorType = defaultSwitchEvaluator
		}
		if task.Expression == "" {
			task.Expression = defaultSwitchExpression
		}
		defaultCases(task)
	case models.TaskTypeDecision:
		if task.CaseValueParam == "" && task.CaseExpression == "" {
			task.CaseValueParam = defaultCaseValueParam
		}
		defaultCases(task)
	case models.TaskTypeForkJoin:
		if task.ForkTasks == nil {
			task.ForkTasks = [][]models.Task{{}}
		}
	case models.TaskTypeJoin, models.TaskTypeExclusiveJoin:
		if task.JoinOn == nil {
			task.JoinOn = []string{}
		}
	case models.TaskTypeDoWhile:
		if task.LoopCondition == "" {
			task.LoopCondition = DefaultLoopCondition(task.TaskReferenceName)
		}
		if task.LoopOver == nil {
			task.LoopOver = []models.Task{}
		}
	case models.TaskTypeDynamic:
		if task.DynamicTaskNameParam == "" {
			task.DynamicTaskNameParam = defaultDynamicTaskParam
		}
	case models.TaskTypeForkJoinDynamic:
		if task.DynamicForkTasksParam == "" {
			task.DynamicForkTasksParam = defaultDynamicForkParam
		}
		if task.DynamicForkTasksInputParamName == "" {
			task.DynamicForkTasksInputParamName = defaultDynamicForkInput
		}
	case models.TaskTypeSubWorkflow:
		if task.SubWorkflowParam == nil {
			task.SubWorkflowParam = &models.SubWorkflowParams{}
		}
		if task.SubWorkflowParam.Name == "" {
			task.SubWorkflowParam.Name = task.Name
		}
	case models.TaskTypeEvent:
		if task.Sink == "" {
			task.Sink = defaultEventSink
		}
	case models.TaskTypeTerminate:
		setParamDefault(task, "terminationStatus", defaultTerminationStatus)
	case models.TaskTypeInline, models.TaskTypeLambda:
		setParamDefault(task, "evaluatorType", defaultScriptEvaluatorType)
		setParamDefault(task, "expression", "")
	}
}

func defaultCases(task *models.Task) {
	if task.DecisionCases == nil {
		task.DecisionCases = models.NewDecisionCases()
	}
	if task.DefaultCase == nil {
		task.DefaultCase = []models.Task{}
	}
}

func setParamDefault(task *models.Task, key string, value any) {
	if _, ok := task.InputParameters[key]; !ok {
		task.InputParameters[key] = value
	}
}
