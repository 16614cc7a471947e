// Package graph orders workflow nodes for sequential execution.
package graph

import (
	"container/heap"
	"fmt"
	"strings"

	"github.com/dukex/nodeflow/pkg/models"
)

// CycleError reports the nodes that could not be ordered because they sit on,
// or downstream of, a cycle.
type CycleError struct {
	NodeIDs []string
}

func (e *CycleError) Error() string {
	return "workflow contains a cycle involving nodes: " + strings.Join(e.NodeIDs, ", ")
}

// DanglingEdgeError reports a connection whose endpoint is not in the node list.
type DanglingEdgeError struct {
	ConnectionID string
	NodeID       string
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("connection %q references unknown node %q", e.ConnectionID, e.NodeID)
}

type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %q appears more than once", e.NodeID)
}

// Sort returns nodes in an order where every connection's source precedes its
// target. Among nodes that are ready at the same time, the one listed first
// in nodes wins, so the result is deterministic for a given input.
//
// Nodes with no connections are included. A node list with no connections at
// all is returned in its original order.
func Sort(nodes []*models.Node, connections []*models.Connection) ([]*models.Node, error) {
	index := make(map[string]int, len(nodes))

	for i, node := range nodes {
		if _, ok := index[node.ID]; ok {
			return nil, &DuplicateNodeError{NodeID: node.ID}
		}

		index[node.ID] = i
	}

	inDegree := make([]int, len(nodes))
	outgoing := make([][]int, len(nodes))

	for _, connection := range connections {
		source, ok := index[connection.Source]
		if !ok {
			return nil, &DanglingEdgeError{ConnectionID: connection.ID, NodeID: connection.Source}
		}

		target, ok := index[connection.Target]
		if !ok {
			return nil, &DanglingEdgeError{ConnectionID: connection.ID, NodeID: connection.Target}
		}

		outgoing[source] = append(outgoing[source], target)
		inDegree[target]++
	}

	ready := &indexHeap{}

	for i := range nodes {
		if inDegree[i] == 0 {
			heap.Push(ready, i)
		}
	}

	sorted := make([]*models.Node, 0, len(nodes))

	for ready.Len() > 0 {
		current := heap.Pop(ready).(int) //nolint:forcetypeassert

		sorted = append(sorted, nodes[current])

		for _, next := range outgoing[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(sorted) != len(nodes) {
		remaining := make([]string, 0, len(nodes)-len(sorted))

		for i, node := range nodes {
			if inDegree[i] > 0 {
				remaining = append(remaining, node.ID)
			}
		}

		return nil, &CycleError{NodeIDs: remaining}
	}

	return sorted, nil
}

// indexHeap is a min-heap of positions in the original node list.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *indexHeap) Push(x any) {
	*h = append(*h, x.(int)) //nolint:forcetypeassert
}

func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]

	return x
}
