// Package flowchart renders task trees as Mermaid flowchart text.
package flowchart

import (
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/tcmartin/flowstudio/pkg/models"
)

var (
	ErrMaxDepthExceeded = errors.New("task tree exceeds maximum nesting depth")
	ErrInvalidDirection = errors.New("invalid flowchart direction")
)

// Direction is the layout direction of the flowchart
type Direction string

const (
	DirectionTopDown   Direction = "TD"
	DirectionLeftRight Direction = "LR"
)

// DefaultMaxDepth bounds the nesting depth rendered when Options.MaxDepth
// is not set
const DefaultMaxDepth = 64

const (
	startID = "Start"
	endID   = "End"
	indent  = "    "
)

// Options control rendering
type Options struct {
	// Direction defaults to top-down
	Direction Direction

	// ShowStatus styles nodes by the status found in Statuses
	ShowStatus bool

	// Statuses maps task reference names to execution statuses
	Statuses map[string]models.TaskStatus

	// MaxDepth is the deepest nesting level rendered
	MaxDepth int
}

// endpoint is a node the next task attaches to. label is carried onto the
// next edge drawn from it; terminal endpoints never get outgoing edges.
type endpoint struct {
	id       string
	label    string
	terminal bool
}

type renderer struct {
	opts     Options
	maxDepth int
	counter  int
	lines    []string
	classes  *orderedmap.OrderedMap[string, []string]
}

// Render produces the flowchart for tasks, framed by Start and End nodes.
// Output depends only on the input, so identical trees give identical text.
func Render(tasks []models.Task, opts Options) (string, error) {
	switch opts.Direction {
	case "":
		opts.Direction = DirectionTopDown
	case DirectionTopDown, DirectionLeftRight:
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidDirection, opts.Direction)
	}

	r := &renderer{
		opts:     opts,
		maxDepth: opts.MaxDepth,
		classes:  orderedmap.New[string, []string](),
	}
	if r.maxDepth <= 0 {
		r.maxDepth = DefaultMaxDepth
	}

	r.line(startID + "((" + startID + "))")
	ends, err := r.processTaskList(tasks, []endpoint{{id: startID}}, 0)
	if err != nil {
		return "", err
	}
	r.line(endID + "((" + endID + "))")
	r.connect(ends, endID)

	var b strings.Builder
	b.WriteString("flowchart " + string(opts.Direction) + "\n")
	for _, line := range r.lines {
		b.WriteString(indent + line + "\n")
	}
	for pair := r.classes.Oldest(); pair != nil; pair = pair.Next() {
		b.WriteString(indent + "classDef " + pair.Key + " " + classStyle(pair.Key) + "\n")
	}
	for pair := r.classes.Oldest(); pair != nil; pair = pair.Next() {
		b.WriteString(indent + "class " + strings.Join(pair.Value, ",") + " " + pair.Key + "\n")
	}
	return b.String(), nil
}

// RenderDefinition renders the top-level tasks of a definition
func RenderDefinition(def *models.WorkflowDefinition, opts Options) (string, error) {
	if def == nil {
		return Render(nil, opts)
	}
	return Render(def.Tasks, opts)
}

func (r *renderer) line(text string) {
	r.lines = append(r.lines, text)
}

func (r *renderer) edge(from, to, label string) {
	if label == "" {
		r.line(from + " --> " + to)
		return
	}
	r.line(from + " -->|" + escapeText(label) + "| " + to)
}

// connect draws an edge from every live endpoint to id
func (r *renderer) connect(from []endpoint, id string) {
	for _, ep := range from {
		if !ep.terminal {
			r.edge(ep.id, id, ep.label)
		}
	}
}

func (r *renderer) nextID(base string) string {
	id := fmt.Sprintf("%s_%d", base, r.counter)
	r.counter++
	return id
}

func (r *renderer) addClass(id, class string) {
	ids, _ := r.classes.Get(class)
	r.classes.Set(class, append(ids, id))
}

// processTaskList chains tasks one after another starting from the given
// endpoints and returns the endpoints the caller continues from
func (r *renderer) processTaskList(tasks []models.Task, from []endpoint, depth int) ([]endpoint, error) {
	current := from
	for _, task := range tasks {
		ends, err := r.processTask(task, current, depth)
		if err != nil {
			return nil, err
		}
		current = ends
	}
	return current, nil
}

func (r *renderer) processTask(task models.Task, from []endpoint, depth int) ([]endpoint, error) {
	if depth >= r.maxDepth {
		return nil, fmt.Errorf("%w: %d levels at task '%s'", ErrMaxDepthExceeded, r.maxDepth, task.TaskReferenceName)
	}

	id := r.nextID(sanitizeID(task.TaskReferenceName))
	r.line(id + shape(task.Type, task.DisplayName()))
	r.connect(from, id)
	r.styleTask(id, task)

	switch task.Type {
	case models.TaskTypeDecision, models.TaskTypeSwitch:
		return r.processDecision(id, task, depth)
	case models.TaskTypeForkJoin:
		return r.processFork(id, task, depth)
	case models.TaskTypeDoWhile:
		return r.processLoop(id, task, depth)
	case models.TaskTypeTerminate:
		return []endpoint{{id: id, terminal: true}}, nil
	default:
		return []endpoint{{id: id}}, nil
	}
}

func (r *renderer) styleTask(id string, task models.Task) {
	if task.Type == models.TaskTypeTerminate {
		r.addClass(id, classTerminate)
	}
	if !r.opts.ShowStatus {
		return
	}
	if status, ok := r.opts.Statuses[task.TaskReferenceName]; ok && status != "" {
		r.addClass(id, statusClass(status))
	}
}

// processDecision renders every case as its own chain. Two or more live
// branches meet in a synthesized convergence node.
func (r *renderer) processDecision(id string, task models.Task, depth int) ([]endpoint, error) {
	var live [][]endpoint
	var dead []endpoint
	branches := 0

	collect := func(label string, tasks []models.Task) error {
		ends, err := r.processTaskList(tasks, []endpoint{{id: id, label: label}}, depth+1)
		if err != nil {
			return err
		}
		branches++

		var open []endpoint
		for _, ep := range ends {
			if ep.terminal {
				dead = append(dead, ep)
			} else {
				open = append(open, ep)
			}
		}
		if len(open) > 0 {
			live = append(live, open)
		}
		return nil
	}

	if task.DecisionCases != nil {
		for pair := task.DecisionCases.Oldest(); pair != nil; pair = pair.Next() {
			if err := collect(pair.Key, pair.Value); err != nil {
				return nil, err
			}
		}
	}
	if len(task.DefaultCase) > 0 {
		if err := collect("default", task.DefaultCase); err != nil {
			return nil, err
		}
	}

	switch {
	case branches == 0:
		return []endpoint{{id: id}}, nil
	case len(live) == 0:
		return dead, nil
	case len(live) == 1:
		return live[0], nil
	}

	join := r.nextID("join")
	r.line(join + `((" "))`)
	r.addClass(join, classConvergence)
	for _, ends := range live {
		r.connect(ends, join)
	}
	return []endpoint{{id: join}}, nil
}

// processFork renders each branch into a join node declared up front
func (r *renderer) processFork(id string, task models.Task, depth int) ([]endpoint, error) {
	join := r.nextID("join")
	r.line(join + `((" "))`)
	r.addClass(join, classConvergence)

	if len(task.ForkTasks) == 0 {
		r.edge(id, join, "")
	}
	for i, branch := range task.ForkTasks {
		label := fmt.Sprintf("branch %d", i+1)
		ends, err := r.processTaskList(branch, []endpoint{{id: id, label: label}}, depth+1)
		if err != nil {
			return nil, err
		}
		r.connect(ends, join)
	}
	return []endpoint{{id: join}}, nil
}

// processLoop renders the body with loop-back edges and returns a separate
// exit node
func (r *renderer) processLoop(id string, task models.Task, depth int) ([]endpoint, error) {
	ends, err := r.processTaskList(task.LoopOver, []endpoint{{id: id}}, depth+1)
	if err != nil {
		return nil, err
	}
	for _, ep := range ends {
		if !ep.terminal {
			r.edge(ep.id, id, "loop")
		}
	}

	exit := r.nextID("exit")
	r.line(exit + `(["exit"])`)
	r.addClass(exit, classLoopExit)
	r.edge(id, exit, "exit")
	return []endpoint{{id: exit}}, nil
}
