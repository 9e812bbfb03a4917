package toolset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyVisitsChildrenBeforeSelf(t *testing.T) {
	a := newStub("a", "alpha")
	b := newStub("b", "beta")
	inner := NewCombinedToolset("inner", a, b)
	root := NewCombinedToolset("root", inner, newStub("c", "gamma"))

	var order []string
	root.Apply(func(ts Toolset) {
		order = append(order, ts.ID())
	})
	require.Equal(t, []string{"a", "b", "inner", "c", "root"}, order)
}

func TestApplySeesThroughWrappers(t *testing.T) {
	inner := newStub("inner", "t")
	root := NewCombinedToolset("root", NewPrefixedToolset("p", inner))

	var order []string
	root.Apply(func(ts Toolset) {
		order = append(order, ts.ID())
	})
	require.Equal(t, []string{"inner", "root"}, order)
}

func TestApplyDelegatesToBoundDynamicChild(t *testing.T) {
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		return newStub("built", "t"), nil
	}, WithDynamicID("dyn"))

	// Unbound: the dynamic node itself is the leaf.
	var seen []string
	d.Apply(func(ts Toolset) { seen = append(seen, ts.ID()) })
	require.Equal(t, []string{"dyn"}, seen)

	_, err := d.GetTools(context.Background(), NewRunContext(nil))
	require.NoError(t, err)

	seen = nil
	d.Apply(func(ts Toolset) { seen = append(seen, ts.ID()) })
	require.Equal(t, []string{"built"}, seen)
}

func TestVisitAndReplaceSubstitutesLeaves(t *testing.T) {
	root := NewCombinedToolset("root",
		NewCombinedToolset("inner", newStub("a", "alpha"), newStub("b", "beta")),
		newStub("c", "gamma"),
	)

	replaced := root.VisitAndReplace(func(ts Toolset) Toolset {
		if stub, ok := ts.(*stubToolset); ok {
			return newStub(stub.id+"-v2", "renamed_"+stub.id)
		}
		return ts
	})

	// Shape is preserved: combined nodes in place, every leaf replaced.
	var ids []string
	replaced.Apply(func(ts Toolset) { ids = append(ids, ts.ID()) })
	require.Equal(t, []string{"a-v2", "b-v2", "inner", "c-v2", "root"}, ids)

	// The original tree is untouched.
	ids = nil
	root.Apply(func(ts Toolset) { ids = append(ids, ts.ID()) })
	require.Equal(t, []string{"a", "b", "inner", "c", "root"}, ids)

	tools, err := replaced.GetTools(context.Background(), NewRunContext(nil))
	require.NoError(t, err)
	require.Contains(t, tools, "renamed_a")
	require.Contains(t, tools, "renamed_b")
	require.Contains(t, tools, "renamed_c")
}

func TestVisitAndReplaceRebuildsPrefixWrapper(t *testing.T) {
	p := NewPrefixedToolset("web", newStub("inner", "search"))

	replaced := p.VisitAndReplace(func(ts Toolset) Toolset {
		if _, ok := ts.(*stubToolset); ok {
			return newStub("swapped", "search")
		}
		return ts
	})

	// The prefix survives replacement of the wrapped subtree.
	rp, ok := replaced.(*PrefixedToolset)
	require.True(t, ok)
	require.Equal(t, "web", rp.Prefix())
	tools, err := replaced.GetTools(context.Background(), NewRunContext(nil))
	require.NoError(t, err)
	require.Contains(t, tools, "web_search")
}

func TestVisitAndReplaceOnBoundDynamicNode(t *testing.T) {
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		return newStub("built", "t"), nil
	}, WithDynamicID("dyn"))
	rc := NewRunContext(nil)
	_, err := d.GetTools(context.Background(), rc)
	require.NoError(t, err)

	visited := 0
	replaced := d.VisitAndReplace(func(ts Toolset) Toolset {
		visited++
		if _, ok := ts.(*stubToolset); ok {
			return newStub("swapped", "u")
		}
		return ts
	})

	// Only the bound child is offered; the dynamic node rebuilds around it.
	require.Equal(t, 1, visited)
	rd, ok := replaced.(*DynamicToolset)
	require.True(t, ok)
	require.Equal(t, "dyn", rd.ID())

	tools, err := replaced.GetTools(context.Background(), rc)
	require.NoError(t, err)
	require.Contains(t, tools, "u", "replacement child serves at the preserved bound step")
}

func TestVisitAndReplaceOnEmptyDynamicNode(t *testing.T) {
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		return nil, nil
	}, WithDynamicID("dyn"))

	swapped := newStub("swap", "t")
	replaced := d.VisitAndReplace(func(ts Toolset) Toolset {
		if ts == Toolset(d) {
			return swapped
		}
		return ts
	})
	require.Equal(t, Toolset(swapped), replaced)
}
