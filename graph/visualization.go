package graph

import (
	"fmt"
	"strings"
)

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

// DrawMermaid generates a Mermaid diagram of the graph, rendering nested
// subgraphs as Mermaid subgraph blocks.
func (g *Graph) DrawMermaid() string {
	return g.DrawMermaidWithOptions(MermaidOptions{Direction: "TD"})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options
func (g *Graph) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	sb.WriteString(fmt.Sprintf("flowchart %s\n", direction))

	if g.entryPoint != "" {
		sb.WriteString("    START([\"START\"])\n")
		sb.WriteString("    style START fill:#90EE90\n")
		sb.WriteString(fmt.Sprintf("    START --> %s\n", mermaidID(g.entryPoint)))
	}

	usedEnd := false
	g.writeMermaidScope(&sb, 1, &usedEnd)

	if usedEnd {
		sb.WriteString("    END([\"END\"])\n")
		sb.WriteString("    style END fill:#FFB6C1\n")
	}

	return sb.String()
}

func (g *Graph) writeMermaidScope(sb *strings.Builder, depth int, usedEnd *bool) {
	indent := strings.Repeat("    ", depth)

	for _, id := range g.arena.order {
		entry := g.arena.nodes[id]
		if entry.scope != g {
			continue
		}
		if entry.sub != nil {
			sb.WriteString(fmt.Sprintf("%ssubgraph %s[\"%s\"]\n", indent, mermaidID(entry.id), entry.name))
			entry.sub.writeMermaidScope(sb, depth+1, usedEnd)
			sb.WriteString(indent + "end\n")
			continue
		}
		sb.WriteString(fmt.Sprintf("%s%s[\"%s\"]\n", indent, mermaidID(entry.id), entry.name))
	}

	for _, edge := range g.edges {
		for _, to := range g.mermaidEdgeTargets(edge.To, usedEnd) {
			sb.WriteString(fmt.Sprintf("%s%s --> %s\n", indent, mermaidID(edge.From), to))
		}
	}

	for from := range g.conditionalEdges {
		sb.WriteString(fmt.Sprintf("%s%s -.-> %s_condition((?))\n", indent, mermaidID(from), mermaidID(from)))
	}
}

// mermaidEdgeTargets resolves an edge target to the drawable node(s) it
// reaches. END finishes the scope: for the root graph that is the terminal
// END node, for a subgraph it is wherever the boundary node's outgoing edges
// lead in the parent scope. Edges into a subgraph point at its entry node.
func (g *Graph) mermaidEdgeTargets(to string, usedEnd *bool) []string {
	if to == END {
		return g.mermaidExitTargets(usedEnd)
	}
	if target, ok := g.arena.nodes[to]; ok && target.sub != nil {
		return []string{mermaidID(target.sub.entryPoint)}
	}
	return []string{mermaidID(to)}
}

func (g *Graph) mermaidExitTargets(usedEnd *bool) []string {
	if g.parent == nil {
		*usedEnd = true
		return []string{"END"}
	}
	var targets []string
	for _, edge := range g.parent.edges {
		if edge.From != g.boundary.id {
			continue
		}
		targets = append(targets, g.parent.mermaidEdgeTargets(edge.To, usedEnd)...)
	}
	return targets
}

// mermaidID makes a qualified node id safe for use as a Mermaid identifier.
func mermaidID(id string) string {
	return strings.NewReplacer("/", "__", " ", "_").Replace(id)
}
