package flowchart

import (
	"strings"

	"github.com/tcmartin/flowstudio/pkg/models"
)

const (
	classTerminate   = "terminate"
	classConvergence = "convergence"
	classLoopExit    = "loopExit"
	statusPrefix     = "status_"
)

// classStyles holds the classDef body for every predefined class
var classStyles = map[string]string{
	classTerminate:       "fill:#fdecea,stroke:#c62828,stroke-width:2px",
	classConvergence:     "fill:#eceff1,stroke:#607d8b",
	classLoopExit:        "fill:#e8f5e9,stroke:#2e7d32",
	"status_completed":   "fill:#c8e6c9,stroke:#2e7d32",
	"status_failed":      "fill:#ffcdd2,stroke:#c62828",
	"status_in_progress": "fill:#bbdefb,stroke:#1565c0",
	"status_scheduled":   "fill:#fff9c4,stroke:#f9a825",
	"status_skipped":     "fill:#f5f5f5,stroke:#9e9e9e,stroke-dasharray:4",
	"status_canceled":    "fill:#e0e0e0,stroke:#616161",
	"status_timed_out":   "fill:#ffe0b2,stroke:#ef6c00",
}

// fallbackStyle is used for status classes without a predefined style
const fallbackStyle = "fill:#ffffff,stroke:#9e9e9e"

// statusClass maps a status to a class name Mermaid reads as one token
func statusClass(status models.TaskStatus) string {
	return statusPrefix + sanitizeID(strings.ToLower(strings.TrimSpace(string(status))))
}

func classStyle(class string) string {
	if style, ok := classStyles[class]; ok {
		return style
	}
	return fallbackStyle
}

// shape wraps an escaped label in the brackets used for the task type
func shape(taskType models.TaskType, label string) string {
	text := escapeText(label)
	switch taskType {
	case models.TaskTypeSimple:
		return `["` + text + `"]`
	case models.TaskTypeHTTP:
		return `("` + text + `")`
	case models.TaskTypeDecision, models.TaskTypeSwitch:
		return `{"` + text + `"}`
	case models.TaskTypeForkJoin, models.TaskTypeForkJoinDynamic:
		return `[/"` + text + `"/]`
	case models.TaskTypeJoin, models.TaskTypeExclusiveJoin:
		return `(("` + text + `"))`
	case models.TaskTypeDoWhile:
		return `{{"` + text + `"}}`
	case models.TaskTypeTerminate:
		return `[\"` + text + `"\]`
	case models.TaskTypeSubWorkflow, models.TaskTypeStartWorkflow:
		return `[["` + text + `"]]`
	case models.TaskTypeWait, models.TaskTypeHuman:
		return `(["` + text + `"])`
	default:
		return `>"` + text + `"]`
	}
}

var textEscaper = strings.NewReplacer(`"`, "#quot;", "|", "#124;", "\n", " ")

func escapeText(text string) string {
	return textEscaper.Replace(text)
}

// sanitizeID reduces a reference name to characters safe in a node id
func sanitizeID(ref string) string {
	var b strings.Builder
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "task"
	}
	return b.String()
}
