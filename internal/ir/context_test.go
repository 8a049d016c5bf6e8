package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopeResolution(t *testing.T) {
	t.Parallel()

	ctx := NewContext()
	require.True(t, ctx.AtGlobalScope())

	ctx.Bind("a", Symbol{Kind: SymbolVar})

	sym, ok := ctx.Resolve("a")
	require.True(t, ok)
	require.Equal(t, SymbolVar, sym.Kind)
	require.Equal(t, 1, sym.Val)

	ctx.EnterScope()
	require.Equal(t, 2, ctx.Depth())

	// Shadowing binds in the inner frame; resolution reports the inner depth.
	ctx.Bind("a", Symbol{Kind: SymbolVar})

	sym, ok = ctx.Resolve("a")
	require.True(t, ok)
	require.Equal(t, 2, sym.Val)

	ctx.LeaveScope()

	sym, ok = ctx.Resolve("a")
	require.True(t, ok)
	require.Equal(t, 1, sym.Val)

	_, ok = ctx.Resolve("b")
	require.False(t, ok)
}

func TestConstantSymbols(t *testing.T) {
	t.Parallel()

	ctx := NewContext()
	ctx.Bind("n", Symbol{Kind: SymbolConst, Val: 42})

	ctx.EnterScope()

	// Constants resolve to their folded value, not to a depth.
	sym, ok := ctx.Resolve("n")
	require.True(t, ok)
	require.Equal(t, SymbolConst, sym.Kind)
	require.Equal(t, 42, sym.Val)
}

func TestAllocationMarkers(t *testing.T) {
	t.Parallel()

	ctx := NewContext()
	ctx.EnterScope() // function body, depth 2
	ctx.EnterScope() // nested block, depth 3

	require.False(t, ctx.WasAllocated("a"))
	ctx.MarkAllocated("a")
	require.True(t, ctx.WasAllocated("a"))

	// A different depth is a different binding.
	ctx.EnterScope()
	require.False(t, ctx.WasAllocated("a"))
	ctx.LeaveScope()

	require.True(t, ctx.WasAllocated("a"))

	ctx.ResetAllocations()
	require.False(t, ctx.WasAllocated("a"))
}

func TestAllocationMarkersExemptTopLevels(t *testing.T) {
	t.Parallel()

	ctx := NewContext()
	ctx.EnterScope() // function body, depth 2

	// Function-entry frames never suppress: each function re-emits storage.
	ctx.MarkAllocated("a")
	require.False(t, ctx.WasAllocated("a"))
}

func TestLoopStack(t *testing.T) {
	t.Parallel()

	ctx := NewContext()

	_, ok := ctx.CurrentLoop()
	require.False(t, ok)

	ctx.PushLoop("%while_entry_1", "%while_end_1")
	ctx.PushLoop("%while_entry_2", "%while_end_2")

	loop, ok := ctx.CurrentLoop()
	require.True(t, ok)
	require.Equal(t, "%while_entry_2", loop.Continue)
	require.Equal(t, "%while_end_2", loop.Break)

	ctx.PopLoop()

	loop, ok = ctx.CurrentLoop()
	require.True(t, ok)
	require.Equal(t, "%while_end_1", loop.Break)
}

func TestTempCounter(t *testing.T) {
	t.Parallel()

	ctx := NewContext()

	require.Equal(t, "%0", ctx.NewTemp().String())
	require.Equal(t, "%1", ctx.NewTemp().String())
	require.Equal(t, "%2", ctx.NewTemp().String())
}

func TestLabelCounters(t *testing.T) {
	t.Parallel()

	ctx := NewContext()

	require.Equal(t, 1, ctx.NextIf())
	require.Equal(t, 2, ctx.NextIf())
	require.Equal(t, 1, ctx.NextWhile())
	require.Equal(t, 1, ctx.NextAnd())
	require.Equal(t, 1, ctx.NextOr())
}

func TestFunctionTable(t *testing.T) {
	t.Parallel()

	ctx := NewContext()
	ctx.DeclareFunc("f", false)
	ctx.DeclareFunc("g", true)

	retUnit, ok := ctx.LookupFunc("f")
	require.True(t, ok)
	require.False(t, retUnit)

	retUnit, ok = ctx.LookupFunc("g")
	require.True(t, ok)
	require.True(t, retUnit)

	_, ok = ctx.LookupFunc("h")
	require.False(t, ok)
}
