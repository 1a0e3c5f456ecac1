package render

import (
	"fmt"
	"io"
	"strings"

	"dexview/internal/highlight"

	"github.com/gdamore/tcell/v2"
)

func writeHead(w io.Writer, title string, t Theme) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Helvetica Neue", Helvetica, Arial, sans-serif; font-size: 14px; color: %s; background: %s; margin: 2em; max-width: 900px; }
h1 { font-size: 18px; font-weight: 600; margin-bottom: 0.5em; }
h2 { font-size: 14px; font-weight: 600; margin-top: 1.5em; border-bottom: 1px solid #ddd; padding-bottom: 4px; }
table { border-collapse: collapse; margin: 0.5em 0; }
th, td { text-align: left; padding: 3px 12px 3px 0; font-size: 13px; }
th { font-weight: 600; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
.prov { display: inline-block; width: 10px; height: 10px; border-radius: 2px; margin-right: 4px; vertical-align: middle; }
a { color: %s; }
.bar { height: 8px; border-radius: 2px; display: inline-block; vertical-align: middle; }
pre.code { font-family: "Courier New", monospace; font-size: 12px; background: %s; color: %s; padding: 1em; border: 1px solid #ddd; overflow-x: auto; }
</style>
</head>
<body>
`, htmlEscape(title), t.TextColor, t.Background, t.EdgeJNI, t.CodeBackground, t.CodeText)
	fmt.Fprintf(w, "<h1>%s</h1>\n", htmlEscape(title))
}

// HighlightHTML renders text as escaped HTML with one <span> per run of
// equally styled bytes. Unstyled runs are written bare.
func HighlightHTML(text string, spans []highlight.Span) string {
	styles := highlight.Styles(len(text), spans)
	var b strings.Builder
	start := 0
	for i := 1; i <= len(text); i++ {
		if i < len(text) && styles[i] == styles[start] {
			continue
		}
		run := htmlEscape(text[start:i])
		if c := styles[start]; c != tcell.ColorDefault {
			fmt.Fprintf(&b, `<span style="color:%s">%s</span>`, highlight.Hex(c), run)
		} else {
			b.WriteString(run)
		}
		start = i
	}
	return b.String()
}

// WritePageHTML writes a standalone page with a highlighted listing.
func WritePageHTML(w io.Writer, title, text string, spans []highlight.Span, t Theme) {
	writeHead(w, title, t)
	fmt.Fprintf(w, "<pre class=\"code\">%s</pre>\n", HighlightHTML(text, spans))
	fmt.Fprintln(w, "</body></html>")
}

// IndexSummary describes an export for WriteIndexHTML.
type IndexSummary struct {
	Title    string
	Format   string
	Writer   string
	Packages int
	Classes  int
	Methods  int
	Pages    []PageLink
	Graph    *CallgraphStats // nil when no native code was analyzed
	Graphs   []PageLink      // rendered DOT/SVG files
}

// PageLink is a relative link to an exported file.
type PageLink struct {
	Label string
	Href  string
}

// WriteIndexHTML writes a small HTML page summarizing an export.
func WriteIndexHTML(w io.Writer, s IndexSummary, t Theme) {
	writeHead(w, s.Title, t)

	fmt.Fprintln(w, "<h2>Summary</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintf(w, "<tr><td>Format</td><td>%s</td></tr>\n", htmlEscape(s.Format))
	fmt.Fprintf(w, "<tr><td>Writer</td><td>%s</td></tr>\n", htmlEscape(s.Writer))
	fmt.Fprintf(w, "<tr><td>Packages</td><td class=\"num\">%d</td></tr>\n", s.Packages)
	fmt.Fprintf(w, "<tr><td>Classes</td><td class=\"num\">%d</td></tr>\n", s.Classes)
	fmt.Fprintf(w, "<tr><td>Methods</td><td class=\"num\">%d</td></tr>\n", s.Methods)
	fmt.Fprintln(w, "</table>")

	if g := s.Graph; g != nil {
		writeGraphStats(w, *g, t)
	}

	if len(s.Graphs) > 0 {
		fmt.Fprintln(w, "<h2>Graphs</h2>")
		fmt.Fprintln(w, "<p>")
		for i, l := range s.Graphs {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprintf(w, `<a href="%s">%s</a>`, htmlEscape(l.Href), htmlEscape(l.Label))
		}
		fmt.Fprintln(w, "</p>")
	}

	if len(s.Pages) > 0 {
		fmt.Fprintln(w, "<h2>Classes</h2>")
		fmt.Fprintln(w, "<table>")
		for _, l := range s.Pages {
			fmt.Fprintf(w, "<tr><td><a href=\"%s\">%s</a></td></tr>\n", htmlEscape(l.Href), htmlEscape(l.Label))
		}
		fmt.Fprintln(w, "</table>")
	}

	fmt.Fprintln(w, "</body></html>")
}

func writeGraphStats(w io.Writer, stats CallgraphStats, t Theme) {
	blrPct := 0.0
	if stats.BLREdges > 0 {
		blrPct = float64(stats.BLRAnnotated) / float64(stats.BLREdges) * 100
	}

	fmt.Fprintln(w, "<h2>Native Code</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintf(w, "<tr><td>Native methods</td><td class=\"num\">%d</td></tr>\n", stats.TotalFunctions)
	fmt.Fprintf(w, "<tr><td>Owner classes</td><td class=\"num\">%d</td></tr>\n", stats.UniqueOwners)
	fmt.Fprintf(w, "<tr><td>Total edges</td><td class=\"num\">%d</td></tr>\n", stats.TotalEdges)
	fmt.Fprintf(w, "<tr><td>BL (direct)</td><td class=\"num\">%d</td></tr>\n", stats.BLEdges)
	fmt.Fprintf(w, "<tr><td>BLR (indirect)</td><td class=\"num\">%d</td></tr>\n", stats.BLREdges)
	fmt.Fprintf(w, "<tr><td>BLR annotated</td><td class=\"num\">%d (%.1f%%)</td></tr>\n", stats.BLRAnnotated, blrPct)
	fmt.Fprintln(w, "</table>")

	fmt.Fprintln(w, "<h2>Edge Provenance</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(w, "<tr><th></th><th>Category</th><th>Count</th><th></th></tr>")
	provOrder := []string{ProvDirect, ProvStub, ProvJNI, ProvUnresolved}
	provLabels := map[string]string{
		ProvDirect:     "BL named",
		ProvStub:       "BL unnamed",
		ProvJNI:        "JNIEnv function",
		ProvUnresolved: "Unresolved",
	}
	for _, prov := range provOrder {
		count := stats.ProvCounts[prov]
		if count == 0 {
			continue
		}
		color := edgeColor(prov, t)
		barW := 0
		if stats.TotalEdges > 0 {
			barW = max(count*200/stats.TotalEdges, 2)
		}
		fmt.Fprintf(w, "<tr><td><span class=\"prov\" style=\"background:%s\"></span></td><td>%s</td><td class=\"num\">%d</td><td><span class=\"bar\" style=\"width:%dpx;background:%s\"></span></td></tr>\n",
			color, provLabels[prov], count, barW, color)
	}
	fmt.Fprintln(w, "</table>")

	if len(stats.TopCallees) > 0 {
		fmt.Fprintln(w, "<h2>Top Callees</h2>")
		fmt.Fprintln(w, "<table>")
		fmt.Fprintln(w, "<tr><th>Function</th><th>Incoming</th></tr>")
		for _, nc := range stats.TopCallees[:min(len(stats.TopCallees), 15)] {
			fmt.Fprintf(w, "<tr><td>%s</td><td class=\"num\">%d</td></tr>\n", htmlEscape(nc.Name), nc.Count)
		}
		fmt.Fprintln(w, "</table>")
	}
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
