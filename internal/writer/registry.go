package writer

import (
	"fmt"

	"dexview/internal/highlight"
)

// UnknownWriterError is returned by Activate for unregistered names.
type UnknownWriterError struct {
	Name string
}

func (e *UnknownWriterError) Error() string {
	return fmt.Sprintf("writer: unknown writer %q", e.Name)
}

// MalformedRuleError is returned by Register when a writer's highlight
// rules do not compile.
type MalformedRuleError struct {
	Writer string
	Err    error // *highlight.RuleError
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("writer: %s: malformed highlight rule: %v", e.Writer, e.Err)
}

func (e *MalformedRuleError) Unwrap() error { return e.Err }

type entry struct {
	factory Factory
	rules   []highlight.Rule
}

// Registry maps writer names to factories. It is populated at start-up and
// only read afterwards.
type Registry struct {
	names   []string
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a writer. Its highlight rules are compiled now; a bad rule
// or a duplicate name leaves the registry unchanged.
func (r *Registry) Register(name string, f Factory) error {
	if _, dup := r.entries[name]; dup {
		return fmt.Errorf("writer: %q already registered", name)
	}
	rules, err := highlight.Compile(f().HighlightRules())
	if err != nil {
		return &MalformedRuleError{Writer: name, Err: err}
	}
	r.names = append(r.names, name)
	r.entries[name] = entry{factory: f, rules: rules}
	return nil
}

// Names lists writer names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Activate creates a new writer by name along with its compiled rules.
func (r *Registry) Activate(name string) (Writer, []highlight.Rule, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, nil, &UnknownWriterError{Name: name}
	}
	return e.factory(), e.rules, nil
}
