package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"dexview/internal/callgraph"
)

// ClassgraphDOT renders a class-level call graph where each class is one
// node and edges aggregate direct calls between classes. maxNodes limits
// rendered classes (0 = all). Targets without a class are grouped under
// "(unowned)".
func ClassgraphDOT(funcs []callgraph.FuncInfo, title string, t Theme, maxNodes int) string {
	ownerMethodCount := make(map[string]int)
	for _, f := range funcs {
		ownerMethodCount[ownerOrUnowned(f.Name)]++
	}

	type classEdge struct {
		from, to string
	}
	classCounts := make(map[classEdge]int)
	for _, f := range funcs {
		src := ownerOrUnowned(f.Name)
		for _, e := range f.CallEdges {
			// BLR edges name JNIEnv functions, not classes.
			if e.Kind != "bl" {
				continue
			}
			dst := ownerOrUnowned(e.Callee())
			if src == dst {
				continue
			}
			classCounts[classEdge{src, dst}]++
		}
	}

	classInvolvement := make(map[string]int)
	for ce, count := range classCounts {
		classInvolvement[ce.from] += count
		classInvolvement[ce.to] += count
	}

	type rankedClass struct {
		name        string
		involvement int
	}
	ranked := make([]rankedClass, 0, len(classInvolvement))
	for name, inv := range classInvolvement {
		ranked = append(ranked, rankedClass{name, inv})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].involvement != ranked[j].involvement {
			return ranked[i].involvement > ranked[j].involvement
		}
		return ranked[i].name < ranked[j].name
	})

	limit := len(ranked)
	if maxNodes > 0 && limit > maxNodes {
		limit = maxNodes
	}
	renderSet := make(map[string]bool, limit)
	for _, rc := range ranked[:limit] {
		renderSet[rc.name] = true
	}

	var b strings.Builder
	b.WriteString("digraph classgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.5;\n")
	b.WriteString("  ranksep=0.8;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=\"filled,rounded\", fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=10, fontcolor=%q, height=0.4, margin=\"0.15,0.08\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee, color=%q];\n", t.EdgeDirect)
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	maxMethods := 1
	for name := range renderSet {
		if c := ownerMethodCount[name]; c > maxMethods {
			maxMethods = c
		}
	}
	for _, rc := range ranked[:limit] {
		methods := ownerMethodCount[rc.name]
		// Scale node height by method count (log scale).
		height := 0.4 + 0.3*math.Log2(float64(methods)+1)/math.Log2(float64(maxMethods)+1)
		label := fmt.Sprintf("<<font point-size=\"10\">%s</font><br/><font point-size=\"7\" color=\"%s\">%d methods</font>>",
			dotEscape(simpleClass(rc.name)), t.ExternalText, methods)

		if rc.name == unowned {
			fmt.Fprintf(&b, "  %s [label=%s, fillcolor=%q, height=%.2f];\n", dotID(rc.name), label, t.StubFill, height)
		} else {
			fmt.Fprintf(&b, "  %s [label=%s, height=%.2f];\n", dotID(rc.name), label, height)
		}
	}
	b.WriteByte('\n')

	maxEdgeCount := 1
	for ce, c := range classCounts {
		if renderSet[ce.from] && renderSet[ce.to] && c > maxEdgeCount {
			maxEdgeCount = c
		}
	}

	edges := make([]classEdge, 0, len(classCounts))
	for ce := range classCounts {
		if renderSet[ce.from] && renderSet[ce.to] {
			edges = append(edges, ce)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})
	for _, ce := range edges {
		count := classCounts[ce]
		pw := 0.5 + 2.0*math.Log2(float64(count)+1)/math.Log2(float64(maxEdgeCount)+1)
		attrs := fmt.Sprintf("penwidth=%.1f", pw)
		if count > 1 {
			attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%d</font>>", t.ExternalText, count)
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(ce.from), dotID(ce.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}

func ownerOrUnowned(name string) string {
	if o := ownerOf(name); o != "" {
		return o
	}
	return unowned
}
