package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/schemasync/schemasync/pkg/document"
)

// DAGBuilder orders a batch of documents so that every master is processed
// before the entities that inherit from it. Edges only exist between
// documents of the same kind; masters outside the batch are ignored.
type DAGBuilder struct {
	// docs maps node IDs to their document index
	docs map[string]int

	// ids holds the node ID of every accepted document
	ids []string

	// parent maps node IDs to their master's node ID, if it is in the batch
	parent map[string]string

	// children maps node IDs to the node IDs that inherit from them
	children map[string][]string

	// levels maps depth to node IDs at that depth
	levels [][]string

	// rejected maps document index to the reason it cannot be ordered
	rejected map[int]error
}

// ImportOrder is the outcome of ordering a batch.
type ImportOrder struct {
	// Sequence lists document indexes, masters first.
	Sequence []int

	// Levels groups node IDs by inheritance depth.
	Levels [][]string

	// Rejected maps document index to the reason it was left out.
	Rejected map[int]error
}

// NewDAGBuilder creates a new DAG builder.
func NewDAGBuilder() *DAGBuilder {
	return &DAGBuilder{
		docs:     make(map[string]int),
		ids:      make([]string, 0),
		parent:   make(map[string]string),
		children: make(map[string][]string),
		levels:   make([][]string, 0),
		rejected: make(map[int]error),
	}
}

// BuildImportOrder orders docs masters-first. Documents on a master cycle,
// duplicates and documents without an alias are rejected individually; the
// rest of the batch is still ordered.
func BuildImportOrder(docs []*document.Document) *ImportOrder {
	return NewDAGBuilder().Build(docs)
}

// NodeID returns the graph node ID of a document.
func NodeID(doc *document.Document) string {
	return doc.Kind.String() + "/" + doc.Alias()
}

// Build computes the import order for docs.
func (b *DAGBuilder) Build(docs []*document.Document) *ImportOrder {
	b.initialize(docs)
	b.rejectCycles()
	b.computeLevels()

	order := &ImportOrder{
		Sequence: make([]int, 0, len(b.ids)),
		Levels:   b.levels,
		Rejected: b.rejected,
	}
	for _, level := range b.levels {
		for _, id := range level {
			order.Sequence = append(order.Sequence, b.docs[id])
		}
	}
	return order
}

// initialize indexes documents and links each to its master.
func (b *DAGBuilder) initialize(docs []*document.Document) {
	for i, doc := range docs {
		if doc == nil || doc.Alias() == "" {
			b.rejected[i] = NewPermanentError("document has no alias", nil).WithCode(ErrCodeMissingAlias)
			continue
		}
		id := NodeID(doc)
		if first, exists := b.docs[id]; exists {
			b.rejected[i] = NewPermanentError(
				fmt.Sprintf("duplicate document for %s", id), nil).
				WithCode(ErrCodeDuplicateMatch).
				WithEntity(doc.Alias()).
				WithDetail("first_index", first)
			continue
		}
		b.docs[id] = i
		b.ids = append(b.ids, id)
	}

	for _, id := range b.ids {
		doc := docs[b.docs[id]]
		master := doc.Master()
		if master == "" {
			continue
		}
		pid := doc.Kind.String() + "/" + master
		if _, ok := b.docs[pid]; !ok {
			continue
		}
		b.parent[id] = pid
		b.children[pid] = append(b.children[pid], id)
	}
}

// rejectCycles removes every node that lies on a master cycle. Each node has
// at most one master, so a node is on a cycle exactly when walking up its
// masters leads back to it.
func (b *DAGBuilder) rejectCycles() {
	onCycle := make(map[string]bool)
	for _, id := range b.ids {
		if onCycle[id] {
			continue
		}
		path := []string{id}
		seen := map[string]bool{id: true}
		cur := id
		for {
			next, ok := b.parent[cur]
			if !ok {
				break
			}
			if next == id {
				for _, n := range path {
					onCycle[n] = true
				}
				err := NewPermanentError(
					fmt.Sprintf("circular master chain detected: %s", formatCycle(append(path, id))), nil).
					WithCode(ErrCodeCycle).
					WithDetail("cycle", append([]string(nil), path...))
				for _, n := range path {
					b.rejected[b.docs[n]] = err
				}
				break
			}
			if seen[next] {
				break
			}
			seen[next] = true
			path = append(path, next)
			cur = next
		}
	}

	if len(onCycle) == 0 {
		return
	}

	kept := b.ids[:0]
	for _, id := range b.ids {
		if !onCycle[id] {
			kept = append(kept, id)
		}
	}
	b.ids = kept

	for id, pid := range b.parent {
		if onCycle[id] || onCycle[pid] {
			delete(b.parent, id)
		}
	}
	for pid := range b.children {
		if onCycle[pid] {
			delete(b.children, pid)
			continue
		}
		filtered := b.children[pid][:0]
		for _, c := range b.children[pid] {
			if !onCycle[c] {
				filtered = append(filtered, c)
			}
		}
		b.children[pid] = filtered
	}
}

// computeLevels assigns depths using Kahn's algorithm. Node IDs within a
// level are sorted so the order is deterministic.
func (b *DAGBuilder) computeLevels() {
	current := make([]string, 0)
	for _, id := range b.ids {
		if _, ok := b.parent[id]; !ok {
			current = append(current, id)
		}
	}

	for len(current) > 0 {
		sort.Strings(current)
		b.levels = append(b.levels, current)

		next := make([]string, 0)
		for _, id := range current {
			next = append(next, b.children[id]...)
		}
		current = next
	}
}

// GetLevels returns the computed levels.
func (b *DAGBuilder) GetLevels() [][]string {
	return b.levels
}

// ToDOT generates a DOT format representation of the inheritance graph.
// The output can be rendered with Graphviz tools.
func (b *DAGBuilder) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph Inheritance {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, ids := range b.levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")
		for _, id := range ids {
			sb.WriteString(fmt.Sprintf("    %q;\n", id))
		}
		sb.WriteString("  }\n\n")
	}

	edges := make([]string, 0, len(b.parent))
	for id, pid := range b.parent {
		edges = append(edges, fmt.Sprintf("  %q -> %q;\n", pid, id))
	}
	sort.Strings(edges)
	for _, e := range edges {
		sb.WriteString(e)
	}

	sb.WriteString("}\n")
	return sb.String()
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	return strings.Join(cycle, " -> ")
}
