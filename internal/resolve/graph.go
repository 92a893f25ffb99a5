package resolve

import (
	"sort"

	enverrors "github.com/systmms/envars/internal/errors"
)

// referenceGraph is the directed graph of template references for one
// context: an edge A -> B means A's raw value references variable B.
type referenceGraph struct {
	names []string
	edges map[string][]string
}

func newReferenceGraph(deps map[string][]string) *referenceGraph {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return &referenceGraph{names: names, edges: deps}
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the current traversal path
	colorBlack        // finished
)

// sortTopological returns the evaluation order, dependencies before
// dependents, or a CycleError naming the loop in reference order. The
// traversal is an explicit-stack depth-first search so adversarially deep
// reference chains cannot exhaust the call stack.
func (g *referenceGraph) sortTopological() ([]string, error) {
	color := make(map[string]int, len(g.names))
	var order []string

	type frame struct {
		name string
		next int
	}

	for _, start := range g.names {
		if color[start] != colorWhite {
			continue
		}

		stack := []frame{{name: start}}
		color[start] = colorGray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.edges[top.name]

			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++

				switch color[dep] {
				case colorWhite:
					color[dep] = colorGray
					stack = append(stack, frame{name: dep})
				case colorGray:
					// Back edge: the loop is the slice of the current
					// path from dep onward, plus the edge back to dep.
					var cycle []string
					for i := range stack {
						if stack[i].name == dep {
							for _, f := range stack[i:] {
								cycle = append(cycle, f.name)
							}
							break
						}
					}
					return nil, enverrors.CycleError{Names: cycle}
				}
			} else {
				color[top.name] = colorBlack
				order = append(order, top.name)
				stack = stack[:len(stack)-1]
			}
		}
	}

	return order, nil
}
