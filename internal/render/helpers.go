// Package render produces Graphviz DOT and HTML output for native call
// graphs and highlighted listings.
package render

import (
	"fmt"
	"strings"
)

const unowned = "(unowned)"

// dotEscape escapes a string for use in DOT HTML labels.
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// dotID creates a safe DOT identifier from a function name.
func dotID(name string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

// ownerOf returns the class part of "pkg.Class.method", or "" for names
// without one ("memcpy", "sub_1f00", "JNIEnv->FindClass").
func ownerOf(funcName string) string {
	if strings.Contains(funcName, "->") {
		return ""
	}
	if i := strings.LastIndexByte(funcName, '.'); i > 0 {
		return funcName[:i]
	}
	return ""
}

// stripMethodName removes the owner prefix from a fully qualified function name.
// "com.example.Native.hello" → "hello". Returns funcName unchanged if no match.
func stripMethodName(funcName, owner string) string {
	prefix := owner + "."
	if strings.HasPrefix(funcName, prefix) {
		return funcName[len(prefix):]
	}
	return funcName
}

// simpleClass strips the package from a dotted class name.
func simpleClass(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// truncLabel shortens a label to maxLen, appending "..." if truncated.
func truncLabel(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// SafeFilename converts a node or function name into a file name.
func SafeFilename(name string) string {
	r := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	s := r.Replace(name)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
