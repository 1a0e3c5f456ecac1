package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"dexview/internal/container"
	"dexview/internal/index"

	"gopkg.in/yaml.v3"
)

func sampleTree() *index.Tree {
	main := &container.Class{Name: "com.example.Main", Flags: container.AccPublic | container.AccFinal}
	main.Methods = []*container.Method{
		{Name: "run", Class: main, Flags: container.AccPublic},
		{Name: "hello", Class: main, Flags: container.AccPublic | container.AccStatic | container.AccNative},
	}
	app := &container.Class{Name: "App"}
	return index.BuildIndex([]*container.Class{main, app})
}

func TestEntries(t *testing.T) {
	tr := sampleTree()
	entries := Entries(tr, nil)
	if len(entries) != 2 {
		t.Fatalf("got %d roots, want 2", len(entries))
	}
	pkg := entries[0]
	if pkg.Kind != "package" || pkg.Name != "com.example" {
		t.Fatalf("root = %+v", pkg)
	}
	cls := pkg.Children[0]
	if cls.Path != "com.example.Main" || cls.Flags != "public final" || len(cls.Children) != 2 {
		t.Errorf("class = %+v", cls)
	}
	if m := cls.Children[1]; m.Path != "com.example.Main#hello" || m.Flags != "public static native" {
		t.Errorf("method = %+v", m)
	}
	if entries[1].Name != index.DefaultPackage {
		t.Errorf("second root = %+v", entries[1])
	}
}

func TestEntriesFiltered(t *testing.T) {
	tr := sampleTree()
	run, _ := tr.Find("com.example.Main#run")
	keep := map[index.NodeID]bool{0: true, 1: true, run: true}
	entries := Entries(tr, func(id index.NodeID) bool { return keep[id] })
	if len(entries) != 1 || len(entries[0].Children) != 1 || len(entries[0].Children[0].Children) != 1 {
		t.Fatalf("entries = %+v", entries)
	}
	if got := entries[0].Children[0].Children[0].Name; got != "run" {
		t.Errorf("method = %q", got)
	}
}

func TestWriteIndex(t *testing.T) {
	dir := t.TempDir()
	entries := Entries(sampleTree(), nil)
	if err := WriteIndexJSON(dir, entries); err != nil {
		t.Fatal(err)
	}
	if err := WriteIndexYAML(dir, entries); err != nil {
		t.Fatal(err)
	}

	var fromJSON, fromYAML []Entry
	data, err := os.ReadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		t.Fatal(err)
	}
	data, err = os.ReadFile(filepath.Join(dir, "index.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := yaml.Unmarshal(data, &fromYAML); err != nil {
		t.Fatal(err)
	}
	if len(fromJSON) != 2 || len(fromYAML) != 2 || fromYAML[0].Children[0].Name != "com.example.Main" {
		t.Errorf("json = %+v\nyaml = %+v", fromJSON, fromYAML)
	}
}

func TestWriteClass(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteClass(dir, "Smali", "com.example.Main", "smali", ".class public Lcom/example/Main;\n")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "Smali", "com", "example", "Main.smali")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Error(err)
	}
	if err := WriteFile(dir, filepath.Join("graphs", "callgraph.dot"), []byte("digraph {}")); err != nil {
		t.Fatal(err)
	}
}
