// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataflow

import (
	"container/heap"

	"github.com/AleutianAI/graphc/services/graphc/graph"
	"github.com/AleutianAI/graphc/services/graphc/registry"
)

// idHeap is a min-heap of node ids.
type idHeap []string

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// pureNodes returns the ids of nodes whose type is pure and produces a
// value, in ascending order. Unknown types are not pure.
func pureNodes(g *graph.Graph, reg registry.Registry) []string {
	var ids []string
	for _, id := range g.NodeIDs() {
		entry, ok := reg.Lookup(g.Nodes[id].Type)
		if ok && entry.IsPure() {
			ids = append(ids, id)
		}
	}
	return ids
}

// evaluationOrder orders the pure nodes so every data wire between two
// pure nodes goes from an earlier node to a later one.
//
// Kahn's algorithm with the smallest ready id taken first, so the order
// is a function of the graph alone. Each data wire is one edge; parallel
// wires add parallel edges and are counted on both sides.
func evaluationOrder(g *graph.Graph, pure []string) ([]string, error) {
	isPure := make(map[string]bool, len(pure))
	for _, id := range pure {
		isPure[id] = true
	}

	indegree := make(map[string]int, len(pure))
	dependents := make(map[string][]string, len(pure))
	sources := make(map[string][]string, len(pure))
	for _, c := range g.Connections {
		if c.Kind != graph.Data || !isPure[c.SourceNode] || !isPure[c.TargetNode] {
			continue
		}
		indegree[c.TargetNode]++
		dependents[c.SourceNode] = append(dependents[c.SourceNode], c.TargetNode)
		sources[c.TargetNode] = append(sources[c.TargetNode], c.SourceNode)
	}

	ready := make(idHeap, 0, len(pure))
	for _, id := range pure {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	heap.Init(&ready)

	order := make([]string, 0, len(pure))
	for ready.Len() > 0 {
		id := heap.Pop(&ready).(string)
		order = append(order, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				heap.Push(&ready, dep)
			}
		}
	}

	if len(order) == len(pure) {
		return order, nil
	}

	emitted := make(map[string]bool, len(order))
	for _, id := range order {
		emitted[id] = true
	}
	remaining := make([]string, 0, len(pure)-len(order))
	for _, id := range pure {
		if !emitted[id] {
			remaining = append(remaining, id)
		}
	}
	return nil, &CycleError{
		Path:      findCycle(remaining, sources, emitted),
		Remaining: remaining,
	}
}

// findCycle walks backwards from the smallest unresolved node through
// unresolved sources until a node repeats. Every unresolved node has at
// least one unresolved source, so the walk always closes.
func findCycle(remaining []string, sources map[string][]string, emitted map[string]bool) []string {
	if len(remaining) == 0 {
		return nil
	}

	seenAt := make(map[string]int, len(remaining))
	var walk []string
	cur := remaining[0]
	for {
		if at, seen := seenAt[cur]; seen {
			walk = walk[at:]
			break
		}
		seenAt[cur] = len(walk)
		walk = append(walk, cur)

		next := ""
		for _, src := range sources[cur] {
			if !emitted[src] && (next == "" || src < next) {
				next = src
			}
		}
		if next == "" {
			// Unreachable for a failed sort; report what was walked.
			return walk
		}
		cur = next
	}

	// The walk runs against wire direction; reverse it, rotate the
	// smallest id to the front and close the loop.
	cycle := make([]string, len(walk))
	for i, id := range walk {
		cycle[len(walk)-1-i] = id
	}
	minAt := 0
	for i, id := range cycle {
		if id < cycle[minAt] {
			minAt = i
		}
	}
	closed := make([]string, 0, len(cycle)+1)
	closed = append(closed, cycle[minAt:]...)
	closed = append(closed, cycle[:minAt]...)
	return append(closed, closed[0])
}
