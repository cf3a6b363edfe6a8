// SPDX-License-Identifier: MPL-2.0

// Package dag provides deterministic topological ordering with cycle
// reporting. It orders the selected modules of a resolution for activation:
// a module comes after everything it requires, and among modules that are
// ready at the same time the one added first wins.
package dag

import (
	"container/heap"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is the sentinel error wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle detected")

type (
	// CycleError indicates that the graph contains a cycle, preventing
	// topological ordering. Cycle lists one closed path, first node repeated
	// at the end.
	CycleError[K comparable] struct {
		Cycle []K
	}

	// Graph is a directed graph over comparable keys. An edge from A to B
	// means A must come before B.
	Graph[K comparable] struct {
		// adjacency maps each node index to its successors' indexes.
		adjacency [][]int
		nodes     []K
		index     map[K]int
		edges     map[[2]int]bool
	}

	// readyQueue is a min-heap of node indexes, so ready nodes leave in
	// insertion order.
	readyQueue []int
)

func (e *CycleError[K]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		parts[i] = fmt.Sprint(n)
	}
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(parts, " -> "))
}

// Unwrap returns ErrCycle so callers can use errors.Is for programmatic detection.
func (e *CycleError[K]) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		index: make(map[K]int),
		edges: make(map[[2]int]bool),
	}
}

// AddNode adds a node. Adding an existing node is a no-op and does not
// change its position.
func (g *Graph[K]) AddNode(n K) {
	g.add(n)
}

func (g *Graph[K]) add(n K) int {
	if i, ok := g.index[n]; ok {
		return i
	}
	i := len(g.nodes)
	g.index[n] = i
	g.nodes = append(g.nodes, n)
	g.adjacency = append(g.adjacency, nil)
	return i
}

// AddEdge records that from must come before to. Both nodes are added if
// missing. Self-edges and repeated edges are ignored.
func (g *Graph[K]) AddEdge(from, to K) {
	f, t := g.add(from), g.add(to)
	if f == t || g.edges[[2]int{f, t}] {
		return
	}
	g.edges[[2]int{f, t}] = true
	g.adjacency[f] = append(g.adjacency[f], t)
}

// Len returns the number of nodes.
func (g *Graph[K]) Len() int { return len(g.nodes) }

// TopologicalSort returns all nodes ordered so that every edge points
// forward. Among nodes whose predecessors are all placed, the one added
// earliest comes first. A cycle yields *CycleError.
func (g *Graph[K]) TopologicalSort() ([]K, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make([]int, len(g.nodes))
	for _, succ := range g.adjacency {
		for _, s := range succ {
			inDegree[s]++
		}
	}

	ready := make(readyQueue, 0, len(g.nodes))
	for i, d := range inDegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}
	heap.Init(&ready)

	result := make([]K, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(&ready).(int)
		result = append(result, g.nodes[n])
		for _, s := range g.adjacency[n] {
			inDegree[s]--
			if inDegree[s] == 0 {
				heap.Push(&ready, s)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, &CycleError[K]{Cycle: g.findCycle(inDegree)}
	}
	return result, nil
}

// findCycle walks predecessors among the nodes left unplaced by Kahn's
// algorithm. Each of them has an unplaced predecessor, so the walk must
// revisit a node; the revisited stretch reversed is a forward cycle.
func (g *Graph[K]) findCycle(inDegree []int) []K {
	preds := make([][]int, len(g.nodes))
	for from, succ := range g.adjacency {
		if inDegree[from] == 0 {
			continue
		}
		for _, to := range succ {
			if inDegree[to] > 0 {
				preds[to] = append(preds[to], from)
			}
		}
	}

	start := slices.IndexFunc(inDegree, func(d int) bool { return d > 0 })
	pos := make(map[int]int)
	var path []int
	n := start
	for {
		if _, seen := pos[n]; seen {
			break
		}
		pos[n] = len(path)
		path = append(path, n)
		n = preds[n][0]
	}

	loop := path[pos[n]:]
	cycle := make([]K, 0, len(loop)+1)
	for i := len(loop) - 1; i >= 0; i-- {
		cycle = append(cycle, g.nodes[loop[i]])
	}
	return append(cycle, cycle[0])
}

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) { *q = append(*q, x.(int)) }

func (q *readyQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}
