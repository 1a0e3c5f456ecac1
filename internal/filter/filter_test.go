package filter

import (
	"testing"

	"dexview/internal/container"
	"dexview/internal/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tree(names []string, methods ...string) *index.Tree {
	var cs []*container.Class
	for _, name := range names {
		c := &container.Class{Name: name}
		for _, m := range methods {
			c.Methods = append(c.Methods, &container.Method{Name: m, Class: c})
		}
		cs = append(cs, c)
	}
	return index.BuildIndex(cs)
}

func find(t *testing.T, tr *index.Tree, path string) index.NodeID {
	t.Helper()
	id, ok := tr.Find(path)
	require.True(t, ok, path)
	return id
}

func TestQueryPullsInPackage(t *testing.T) {
	tr := tree([]string{"a.Foo", "a.Bar", "b.Baz"})
	v := ComputeVisibility(tr, "baz")

	assert.True(t, v.Visible(find(t, tr, "b")))
	assert.True(t, v.Visible(find(t, tr, "b.Baz")))
	assert.False(t, v.Visible(find(t, tr, "a")))
	assert.False(t, v.Visible(find(t, tr, "a.Foo")))
	assert.False(t, v.Visible(find(t, tr, "a.Bar")))
	assert.Equal(t, 2, v.Count())
	assert.Equal(t, "baz", v.Query())
}

func TestCaseInsensitive(t *testing.T) {
	tr := tree([]string{"com.Example.HTTPClient"})
	assert.True(t, ComputeVisibility(tr, "httpclient").Visible(find(t, tr, "com.Example.HTTPClient")))
	assert.True(t, ComputeVisibility(tr, "EXAMPLE").Visible(find(t, tr, "com.Example")))
}

func TestMethodMatchShowsAncestors(t *testing.T) {
	tr := tree([]string{"a.Foo", "b.Bar"}, "onCreate", "toString")
	v := ComputeVisibility(tr, "create")

	for _, path := range []string{"a", "a.Foo", "a.Foo#onCreate", "b", "b.Bar", "b.Bar#onCreate"} {
		assert.True(t, v.Visible(find(t, tr, path)), path)
	}
	assert.False(t, v.Visible(find(t, tr, "a.Foo#toString")))
}

func TestMatchingMethodKeepsAncestorsVisible(t *testing.T) {
	tr := tree([]string{"x.One", "x.y.Two", "Three"}, "alpha", "beta", "gamma")
	for _, q := range []string{"", "a", "et", "mm", "zzz", "One", "x."} {
		v := ComputeVisibility(tr, q)
		tr.Walk(func(n *index.Node) bool {
			if v.Visible(n.ID) && n.Parent != index.NoParent {
				assert.True(t, v.Visible(n.Parent), "query %q: %s visible under hidden parent", q, tr.Path(n.ID))
			}
			return true
		})
	}
}

func TestClassMatchDoesNotShowMethods(t *testing.T) {
	tr := tree([]string{"a.Widget"}, "draw")
	v := ComputeVisibility(tr, "widget")
	assert.True(t, v.Visible(find(t, tr, "a.Widget")))
	assert.False(t, v.Visible(find(t, tr, "a.Widget#draw")))
}

func TestPackageKeyIsNotMatched(t *testing.T) {
	tr := tree([]string{"network.Client"})
	v := ComputeVisibility(tr, "network")
	// the class name contains the package, so it matches through the class
	assert.True(t, v.Visible(find(t, tr, "network")))

	tr = tree([]string{"Solo"})
	assert.False(t, ComputeVisibility(tr, "default").Visible(find(t, tr, "default")))
}

func TestEmptyQueryShowsAll(t *testing.T) {
	tr := tree([]string{"a.Foo", "b.Bar", "Orphan"}, "m")
	v := ComputeVisibility(tr, "")
	assert.Equal(t, tr.Len(), v.Count())
	assert.Len(t, VisibleNodes(tr, v), tr.Len())
}

func TestEmptyTree(t *testing.T) {
	tr := index.BuildIndex(nil)
	v := ComputeVisibility(tr, "anything")
	assert.Zero(t, v.Count())
	assert.Empty(t, VisibleNodes(tr, v))
	assert.False(t, v.Visible(0))
	assert.False(t, v.Visible(-1))
}

func TestIdempotent(t *testing.T) {
	tr := tree([]string{"a.Foo", "a.Bar", "b.Baz"}, "run", "bar")
	for _, q := range []string{"", "bar", "RUN", "nothing"} {
		once := ComputeVisibility(tr, q)
		twice := ComputeVisibility(tr, q)
		assert.Equal(t, once, twice, q)
	}
}

func TestVisibleNodesPreOrder(t *testing.T) {
	tr := tree([]string{"a.Foo", "a.Bar", "b.Baz"}, "bar")
	var got []string
	for _, n := range VisibleNodes(tr, ComputeVisibility(tr, "bar")) {
		got = append(got, tr.Path(n.ID))
	}
	assert.Equal(t, []string{
		"a", "a.Foo", "a.Foo#bar", "a.Bar", "a.Bar#bar", "b", "b.Baz", "b.Baz#bar",
	}, got)
}
