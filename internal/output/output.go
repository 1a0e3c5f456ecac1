// Package output writes dexview export results to files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dexview/internal/index"

	"gopkg.in/yaml.v3"
)

// Entry is one node of an exported index.
type Entry struct {
	Kind     string  `json:"kind" yaml:"kind"`
	Name     string  `json:"name" yaml:"name"`
	Path     string  `json:"path" yaml:"path"`
	Flags    string  `json:"flags,omitempty" yaml:"flags,omitempty"`
	Children []Entry `json:"children,omitempty" yaml:"children,omitempty"`
}

// Entries converts the nodes of t accepted by keep into nested entries.
// keep may be nil to accept every node.
func Entries(t *index.Tree, keep func(index.NodeID) bool) []Entry {
	var build func(id index.NodeID) (Entry, bool)
	build = func(id index.NodeID) (Entry, bool) {
		if keep != nil && !keep(id) {
			return Entry{}, false
		}
		n := t.Node(id)
		e := Entry{Kind: n.Kind.String(), Name: n.Name(), Path: t.Path(id)}
		switch n.Kind {
		case index.KindClass:
			e.Flags = strings.Join(n.Class.Flags.ClassModifiers(), " ")
		case index.KindMethod:
			e.Flags = strings.Join(n.Method.Flags.MethodModifiers(), " ")
		}
		for _, c := range n.Children {
			if ce, ok := build(c); ok {
				e.Children = append(e.Children, ce)
			}
		}
		return e, true
	}

	var out []Entry
	for _, r := range t.Roots() {
		if e, ok := build(r); ok {
			out = append(out, e)
		}
	}
	return out
}

// WriteIndexJSON writes the index to index.json.
func WriteIndexJSON(dir string, entries []Entry) error {
	return writeJSON(filepath.Join(dir, "index.json"), entries)
}

// WriteIndexYAML writes the index to index.yaml.
func WriteIndexYAML(dir string, entries []Entry) error {
	path := filepath.Join(dir, "index.yaml")
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0644)
}

// ClassPath returns the export path of a class relative to the writer
// directory: "com/example/Main" for com.example.Main.
func ClassPath(className string) string {
	return filepath.FromSlash(strings.ReplaceAll(className, ".", "/"))
}

// WriteClass writes rendered class text to <writer>/<pkg path>/<Class>.<ext>
// and returns the path written.
func WriteClass(dir, writer, className, ext, text string) (string, error) {
	path := filepath.Join(dir, writer, ClassPath(className)+"."+ext)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("output: mkdir %s: %w", writer, err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	return path, nil
}

// WriteFile writes data to dir/name, creating parent directories.
func WriteFile(dir, name string, data []byte) error {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", filepath.Dir(name), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
