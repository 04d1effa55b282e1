package buildsys

import (
	"errors"
	"io"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/rotisserie/eris"
)

type taskEdge struct {
	from, to string
	invoke   bool
}

// taskEdges lists the tasks name needs. Inline tasks are attributed to their own vertex.
func taskEdges(task *Task) ([]taskEdge, []*Task) {
	edges := []taskEdge{}
	inline := []*Task{}

	for _, dep := range task.Deps {
		edges = append(edges, taskEdge{from: dep, to: task.Short})
	}

	for _, cmd := range task.Cmds {
		if name := cmd.ToInvoke(); name != "" {
			edges = append(edges, taskEdge{from: name, to: task.Short, invoke: true})
			continue
		}

		sub, err := cmd.ToTask()
		if err == nil && sub != nil {
			edges = append(edges, taskEdge{from: sub.Short, to: task.Short})
			inline = append(inline, sub)
		}
	}

	return edges, inline
}

func sortedNames(tasks TaskList) []string {
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildGraph returns a graph with an edge from every task to each task that needs it
func buildGraph(tasks TaskList) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	queue := []*Task{}
	for _, name := range sortedNames(tasks) {
		queue = append(queue, tasks[name])
	}

	allEdges := []taskEdge{}
	for len(queue) > 0 {
		task := queue[0]
		queue = queue[1:]

		attrs := []func(*graph.VertexProperties){graph.VertexAttribute("label", task.Short)}
		if task.Hidden {
			attrs = append(attrs, graph.VertexAttribute("style", "dashed"))
		}

		err := g.AddVertex(task.Short, attrs...)
		if err != nil {
			if errors.Is(err, graph.ErrVertexAlreadyExists) {
				continue
			}
			return nil, eris.Wrapf(err, "failed to add task %s", task.Short)
		}

		edges, inline := taskEdges(task)
		allEdges = append(allEdges, edges...)
		queue = append(queue, inline...)
	}

	for _, edge := range allEdges {
		var attrs []func(*graph.EdgeProperties)
		if edge.invoke {
			attrs = append(attrs, graph.EdgeAttribute("style", "dashed"))
		}

		err := g.AddEdge(edge.from, edge.to, attrs...)
		switch {
		case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
		case errors.Is(err, graph.ErrVertexNotFound):
			return nil, eris.Errorf("Task %s depends on unknown task %s", edge.to, edge.from)
		case errors.Is(err, graph.ErrEdgeCreatesCycle):
			return nil, eris.Errorf("Task %s depends on %s which leads to a dependency cycle", edge.to, edge.from)
		default:
			return nil, eris.Wrapf(err, "failed to add dependency %s -> %s", edge.from, edge.to)
		}
	}

	return g, nil
}

// Validate checks that every referenced task exists and that there are no dependency cycles
func Validate(tasks TaskList) error {
	_, err := buildGraph(tasks)
	return err
}

// Order returns the tasks which running root would execute, in execution order
func Order(tasks TaskList, root string) ([]string, error) {
	if err := Validate(tasks); err != nil {
		return nil, err
	}

	rootTask, ok := tasks[root]
	if !ok {
		return nil, eris.Errorf("Task %s not found", root)
	}

	done := map[string]bool{}
	result := []string{}

	var visit func(task *Task)
	visit = func(task *Task) {
		if done[task.Short] {
			return
		}
		done[task.Short] = true

		for _, dep := range task.Deps {
			visit(tasks[dep])
		}

		if !task.Hidden {
			result = append(result, task.Short)
		}

		for _, cmd := range task.Cmds {
			if name := cmd.ToInvoke(); name != "" {
				visit(tasks[name])
			} else if sub, err := cmd.ToTask(); err == nil && sub != nil {
				visit(sub)
			}
		}
	}
	visit(rootTask)

	return result, nil
}

// Sorted returns all tasks sorted so that each task comes after the tasks it needs
func Sorted(tasks TaskList) ([]string, error) {
	g, err := buildGraph(tasks)
	if err != nil {
		return nil, err
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		return nil, eris.Wrap(err, "failed to sort tasks")
	}

	result := make([]string, 0, len(order))
	for _, name := range order {
		if _, ok := tasks[name]; ok {
			result = append(result, name)
		}
	}
	return result, nil
}

// WriteDOT renders the dependency graph in Graphviz format. If root is not empty, only the tasks
// needed by root are included.
func WriteDOT(w io.Writer, tasks TaskList, root string) error {
	if root != "" {
		if _, ok := tasks[root]; !ok {
			return eris.Errorf("Task %s not found", root)
		}

		subset := TaskList{}
		var collect func(task *Task)
		collect = func(task *Task) {
			edges, inline := taskEdges(task)
			for _, edge := range edges {
				dep, ok := tasks[edge.from]
				if ok && subset[edge.from] == nil {
					subset[edge.from] = dep
					collect(dep)
				}
			}
			for _, sub := range inline {
				collect(sub)
			}
		}
		subset[root] = tasks[root]
		collect(tasks[root])
		tasks = subset
	}

	g, err := buildGraph(tasks)
	if err != nil {
		return err
	}

	return draw.DOT(g, w)
}
