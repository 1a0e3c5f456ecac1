package render

import (
	"fmt"
	"sort"
	"strings"

	"dexview/internal/callgraph"
	"dexview/internal/disasm"
)

// Provenance categories of a call edge.
const (
	ProvDirect     = "direct"
	ProvStub       = "stub"
	ProvJNI        = "jni"
	ProvUnresolved = "unresolved"
)

// ClassifyEdgeProv returns the provenance category for a call edge.
func ClassifyEdgeProv(e disasm.CallEdge) string {
	switch {
	case e.Kind == "bl" && e.TargetName != "":
		return ProvDirect
	case e.Kind == "bl":
		return ProvStub
	case strings.HasPrefix(e.Via, "JNIEnv->"):
		return ProvJNI
	}
	return ProvUnresolved
}

// edgeColor returns the DOT color for an edge provenance category.
func edgeColor(prov string, t Theme) string {
	switch prov {
	case ProvStub:
		return t.EdgeStub
	case ProvJNI:
		return t.EdgeJNI
	case ProvUnresolved:
		return t.EdgeUnresolved
	default:
		return t.EdgeDirect
	}
}

// edgeStyle returns dot style attributes for provenance.
func edgeStyle(prov string) string {
	switch prov {
	case ProvJNI:
		return "dotted"
	case ProvUnresolved:
		return "dashed"
	default:
		return "solid"
	}
}

// edgeTarget names the node an edge points at.
func edgeTarget(e disasm.CallEdge) string {
	if t := e.Callee(); t != "" {
		return t
	}
	return "unresolved_blr"
}

// CallgraphDOT renders the call graph of analyzed methods as DOT, clustering
// methods by class. Targets that are not analyzed methods (libc, JNIEnv
// functions, stubs) are shown as plaintext nodes. maxNodes limits the number
// of method nodes rendered (0 = all).
func CallgraphDOT(funcs []callgraph.FuncInfo, title string, t Theme, maxNodes int) string {
	renderFuncs := funcs
	if maxNodes > 0 && len(renderFuncs) > maxNodes {
		renderFuncs = renderFuncs[:maxNodes]
	}
	funcSet := make(map[string]bool, len(renderFuncs))
	for _, f := range renderFuncs {
		funcSet[f.Name] = true
	}

	// Deduplicate edges: caller→callee→prov.
	type edgeKey struct {
		from, to, prov string
	}
	counts := make(map[edgeKey]int)
	var order []edgeKey
	for _, f := range renderFuncs {
		for _, e := range f.CallEdges {
			k := edgeKey{f.Name, edgeTarget(e), ClassifyEdgeProv(e)}
			if counts[k] == 0 {
				order = append(order, k)
			}
			counts[k]++
		}
	}

	var external []string
	seen := make(map[string]bool)
	for _, k := range order {
		if !funcSet[k.to] && !seen[k.to] {
			seen[k.to] = true
			external = append(external, k.to)
		}
	}

	// Group rendered methods by owner class for clustering.
	var owners []string
	ownerFuncs := make(map[string][]string)
	var noOwner []string
	for _, f := range renderFuncs {
		owner := ownerOf(f.Name)
		if owner == "" {
			noOwner = append(noOwner, f.Name)
			continue
		}
		if _, ok := ownerFuncs[owner]; !ok {
			owners = append(owners, owner)
		}
		ownerFuncs[owner] = append(ownerFuncs[owner], f.Name)
	}

	var b strings.Builder
	b.WriteString("digraph callgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  compound=true;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.4;\n")
	b.WriteString("  ranksep=0.6;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=9, fontcolor=%q, height=0.3, margin=\"0.12,0.06\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee];\n")
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	for _, owner := range owners {
		names := ownerFuncs[owner]
		if len(names) < 2 {
			// Singletons go at top level.
			noOwner = append(noOwner, names...)
			continue
		}
		fmt.Fprintf(&b, "  subgraph %s {\n", "cluster_"+dotID(owner))
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.ClusterLabel, dotEscape(simpleClass(owner)))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, name := range names {
			fmt.Fprintf(&b, "    %s [label=%q];\n", dotID(name), truncLabel(stripMethodName(name, owner), 50))
		}
		b.WriteString("  }\n")
	}

	for _, name := range noOwner {
		fmt.Fprintf(&b, "  %s [label=%q];\n", dotID(name), truncLabel(name, 60))
	}
	b.WriteByte('\n')

	for _, name := range external {
		attrs := fmt.Sprintf("shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8", t.ExternalText)
		if strings.HasPrefix(name, "sub_") {
			attrs = fmt.Sprintf("fillcolor=%q, fontsize=8", t.StubFill)
		}
		fmt.Fprintf(&b, "  %s [label=%q, %s];\n", dotID(name), truncLabel(name, 50), attrs)
	}
	b.WriteByte('\n')

	for _, k := range order {
		color := edgeColor(k.prov, t)
		attrs := fmt.Sprintf("color=%q, style=%q", color, edgeStyle(k.prov))
		if n := counts[k]; n > 1 {
			attrs += fmt.Sprintf(", penwidth=%.1f", 0.5+float64(n)*0.1)
			if n > 2 {
				attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%dx</font>>", color, n)
			}
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}

// CallgraphStats summarizes the call edges of analyzed methods.
type CallgraphStats struct {
	TotalFunctions int
	TotalEdges     int
	BLEdges        int
	BLREdges       int
	BLRAnnotated   int
	UniqueOwners   int
	ProvCounts     map[string]int
	TopCallers     []NameCount // sorted desc
	TopCallees     []NameCount // sorted desc
	TopOwners      []NameCount // sorted desc by method count
}

// NameCount pairs a name with a count.
type NameCount struct {
	Name  string
	Count int
}

// ComputeStats computes call graph statistics.
func ComputeStats(funcs []callgraph.FuncInfo) CallgraphStats {
	stats := CallgraphStats{
		TotalFunctions: len(funcs),
		ProvCounts:     make(map[string]int),
	}

	callerCount := make(map[string]int)
	calleeCount := make(map[string]int)
	ownerCount := make(map[string]int)

	for _, f := range funcs {
		if owner := ownerOf(f.Name); owner != "" {
			ownerCount[owner]++
		}
		for _, e := range f.CallEdges {
			stats.TotalEdges++
			stats.ProvCounts[ClassifyEdgeProv(e)]++
			callerCount[f.Name]++
			if e.Kind == "bl" {
				stats.BLEdges++
			} else {
				stats.BLREdges++
				if e.Via != "" {
					stats.BLRAnnotated++
				}
			}
			if c := e.Callee(); c != "" {
				calleeCount[c]++
			}
		}
	}
	stats.UniqueOwners = len(ownerCount)

	stats.TopCallers = topNMap(callerCount, 20)
	stats.TopCallees = topNMap(calleeCount, 20)
	stats.TopOwners = topNMap(ownerCount, 30)
	return stats
}

// topNMap returns the top N entries from a map, sorted descending by count
// and then by name.
func topNMap(m map[string]int, n int) []NameCount {
	entries := make([]NameCount, 0, len(m))
	for name, count := range m {
		entries = append(entries, NameCount{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
