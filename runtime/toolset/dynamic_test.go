package toolset

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDynamicToolsetBindsOncePerStep(t *testing.T) {
	calls := 0
	stub := newStub("inner", "ping")
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		calls++
		return stub, nil
	}, WithDynamicID("dyn"))

	rc := NewRunContext(nil)
	for range 3 {
		tools, err := d.GetTools(context.Background(), rc)
		require.NoError(t, err)
		require.Contains(t, tools, "ping")
	}
	require.Equal(t, 1, calls, "factory runs once while the step does not advance")
	require.Equal(t, 1, stub.enters)
	require.Zero(t, stub.exits)
}

func TestDynamicToolsetRebuildsOnStepAdvance(t *testing.T) {
	var events []string
	first := newStub("first", "a")
	first.events = &events
	second := newStub("second", "b")
	second.events = &events

	children := []Toolset{first, second}
	calls := 0
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		child := children[calls]
		calls++
		return child, nil
	})

	rc := NewRunContext(nil)
	_, err := d.GetTools(context.Background(), rc)
	require.NoError(t, err)

	rc.RunStep = 1
	tools, err := d.GetTools(context.Background(), rc)
	require.NoError(t, err)
	require.Contains(t, tools, "b")
	require.Equal(t, 2, calls)

	// The superseded child is fully torn down before the next is built.
	require.Equal(t, []string{"enter:first", "exit:first", "enter:second"}, events)
}

func TestDynamicToolsetPerRunStepDisabled(t *testing.T) {
	calls := 0
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		calls++
		return newStub("inner", "t"), nil
	}, WithPerRunStep(false))

	rc := NewRunContext(nil)
	_, err := d.GetTools(context.Background(), rc)
	require.NoError(t, err)
	rc.RunStep = 5
	_, err = d.GetTools(context.Background(), rc)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "child is bound for the whole run")
}

func TestDynamicToolsetNilChildStaysEmpty(t *testing.T) {
	calls := 0
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		calls++
		return nil, nil
	})

	rc := NewRunContext(nil)
	tools, err := d.GetTools(context.Background(), rc)
	require.NoError(t, err)
	require.Empty(t, tools)

	// Still empty: the factory is consulted again at the same step.
	_, err = d.GetTools(context.Background(), rc)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDynamicToolsetFactoryErrorLeavesNodeEmpty(t *testing.T) {
	boom := errors.New("factory failed")
	fail := true
	stub := newStub("inner", "t")
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		if fail {
			return nil, boom
		}
		return stub, nil
	})

	rc := NewRunContext(nil)
	_, err := d.GetTools(context.Background(), rc)
	require.ErrorIs(t, err, boom)

	_, err = d.CallTool(context.Background(), rc, "t", nil, Tool{Name: "t"})
	require.Error(t, err, "no child is bound after a factory failure")

	// Recovery at the same step.
	fail = false
	tools, err := d.GetTools(context.Background(), rc)
	require.NoError(t, err)
	require.Contains(t, tools, "t")
}

func TestDynamicToolsetEnterErrorLeavesNodeEmpty(t *testing.T) {
	stub := newStub("inner", "t")
	stub.enterErr = errors.New("no session")
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		return stub, nil
	})

	rc := NewRunContext(nil)
	_, err := d.GetTools(context.Background(), rc)
	require.Error(t, err)
	_, err = d.CallTool(context.Background(), rc, "t", nil, Tool{Name: "t"})
	require.Error(t, err)
}

func TestDynamicToolsetCanceledContextAbortsRebuild(t *testing.T) {
	stub := newStub("inner", "t")
	calls := 0
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		calls++
		return stub, nil
	})

	rc := NewRunContext(nil)
	_, err := d.GetTools(context.Background(), rc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rc.RunStep = 1
	_, err = d.GetTools(ctx, rc)
	require.ErrorIs(t, err, context.Canceled)

	// Teardown of the superseded child still ran.
	require.Equal(t, 1, stub.exits)
	require.Equal(t, 1, calls, "factory must not run under a canceled context")
}

func TestDynamicToolsetExitIdempotent(t *testing.T) {
	stub := newStub("inner", "t")
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		return stub, nil
	})

	rc := NewRunContext(nil)
	_, err := d.GetTools(context.Background(), rc)
	require.NoError(t, err)

	require.NoError(t, d.Exit(context.Background()))
	require.NoError(t, d.Exit(context.Background()))
	require.Equal(t, 1, stub.exits)
}

func TestDynamicToolsetCallToolBeforeBind(t *testing.T) {
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		return newStub("inner", "t"), nil
	}, WithDynamicID("dyn"))

	_, err := d.CallTool(context.Background(), NewRunContext(nil), "t", nil, Tool{Name: "t"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "before GetTools")
}

func TestDynamicToolsetCallToolDispatchesToChild(t *testing.T) {
	d := NewDynamicToolset(func(context.Context, *RunContext) (Toolset, error) {
		return newStub("inner", "t"), nil
	})

	rc := NewRunContext(nil)
	_, err := d.GetTools(context.Background(), rc)
	require.NoError(t, err)

	out, err := d.CallTool(context.Background(), rc, "t", nil, Tool{Name: "t"})
	require.NoError(t, err)
	require.Equal(t, json.RawMessage(`{"handled_by":"inner"}`), out)
}

func TestDynamicToolsetEqual(t *testing.T) {
	fn := func(context.Context, *RunContext) (Toolset, error) { return nil, nil }
	other := func(context.Context, *RunContext) (Toolset, error) { return nil, nil }

	a := NewDynamicToolset(fn, WithDynamicID("x"))
	b := NewDynamicToolset(fn, WithDynamicID("x"))
	require.True(t, a.Equal(b))

	require.False(t, a.Equal(NewDynamicToolset(other, WithDynamicID("x"))))
	require.False(t, a.Equal(NewDynamicToolset(fn, WithDynamicID("y"))))
	require.False(t, a.Equal(NewDynamicToolset(fn, WithDynamicID("x"), WithPerRunStep(false))))
}
