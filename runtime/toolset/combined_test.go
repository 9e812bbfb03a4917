package toolset

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCombinedToolsetMergesChildren(t *testing.T) {
	c := NewCombinedToolset("all", newStub("a", "alpha"), newStub("b", "beta", "gamma"))

	tools, err := c.GetTools(context.Background(), NewRunContext(nil))
	require.NoError(t, err)
	require.Len(t, tools, 3)
	require.Contains(t, tools, "alpha")
	require.Contains(t, tools, "beta")
	require.Contains(t, tools, "gamma")
}

func TestCombinedToolsetRejectsDuplicateToolNames(t *testing.T) {
	c := NewCombinedToolset("all", newStub("a", "shared"), newStub("b", "shared"))

	_, err := c.GetTools(context.Background(), NewRunContext(nil))
	require.Error(t, err)
	require.Contains(t, err.Error(), `"shared"`)
	require.Contains(t, err.Error(), `"a"`)
	require.Contains(t, err.Error(), `"b"`)
}

func TestCombinedToolsetDispatchesToOwningChild(t *testing.T) {
	c := NewCombinedToolset("all", newStub("a", "alpha"), newStub("b", "beta"))

	rc := NewRunContext(nil)
	_, err := c.GetTools(context.Background(), rc)
	require.NoError(t, err)

	out, err := c.CallTool(context.Background(), rc, "beta", nil, Tool{Name: "beta"})
	require.NoError(t, err)
	require.Equal(t, json.RawMessage(`{"handled_by":"b"}`), out)

	_, err = c.CallTool(context.Background(), rc, "delta", nil, Tool{Name: "delta"})
	require.ErrorIs(t, err, ErrToolNotFound)
}

func TestCombinedToolsetEnterRollsBackOnFailure(t *testing.T) {
	var events []string
	ok1 := newStub("ok1")
	ok1.events = &events
	ok2 := newStub("ok2")
	ok2.events = &events
	bad := newStub("bad")
	bad.events = &events
	bad.enterErr = errors.New("no backend")

	c := NewCombinedToolset("all", ok1, ok2, bad)
	err := c.Enter(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), `"bad"`)

	// Children entered before the failure are released, in reverse order.
	require.Equal(t, []string{"enter:ok1", "enter:ok2", "enter:bad", "exit:ok2", "exit:ok1"}, events)
}

func TestCombinedToolsetExitJoinsChildErrors(t *testing.T) {
	bad1 := newStub("bad1")
	bad1.exitErr = errors.New("first")
	ok := newStub("ok")
	bad2 := newStub("bad2")
	bad2.exitErr = errors.New("second")

	c := NewCombinedToolset("all", bad1, ok, bad2)
	err := c.Exit(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, bad1.exitErr)
	require.ErrorIs(t, err, bad2.exitErr)
	require.Equal(t, 1, ok.exits, "all children exit even when siblings fail")
}

func TestCombinedToolsetEnterAllChildren(t *testing.T) {
	a := newStub("a")
	b := newStub("b")
	c := NewCombinedToolset("all", a, b)

	require.NoError(t, c.Enter(context.Background()))
	require.Equal(t, 1, a.enters)
	require.Equal(t, 1, b.enters)
	require.NoError(t, c.Exit(context.Background()))
	require.Equal(t, 1, a.exits)
	require.Equal(t, 1, b.exits)
}
