package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"perlrt/internal/compiler"
	"perlrt/internal/ir"
	"perlrt/internal/scalar"
)

// sumLoop builds: sub main() { my $s = 0; for (my $i = 0; $i lt 100; $i = $i + 1) { $s = $s + $i } return $s }
// $s lives in slot 0, $i in slot 1 — so the loop's increment and
// accumulation both desugar into the ADD/MOVE shape the fusion pass
// folds into ADD_ASSIGN(_INT).
func sumLoopProgram() *ir.Program {
	return &ir.Program{
		Subs: []*ir.SubDef{
			{
				Name:     "main",
				NumLocal: 2,
				Body: []ir.Stmt{
					&ir.Assign{Slot: 0, X: &ir.Literal{Value: int64(0)}},
					&ir.ForLoop{
						Init:  &ir.Literal{Value: int64(0)},
						Limit: &ir.Literal{Value: int64(100)},
						Step:  &ir.Binary{Op: "+", Left: &ir.LocalRef{Slot: 1}, Right: &ir.Literal{Value: int64(1)}},
						Slot:  1,
						Body: []ir.Stmt{
							&ir.Assign{Slot: 0, X: &ir.Binary{
								Op:    "+",
								Left:  &ir.LocalRef{Slot: 0},
								Right: &ir.LocalRef{Slot: 1},
							}},
						},
					},
					&ir.Return{X: &ir.LocalRef{Slot: 0}},
				},
			},
		},
	}
}

func TestHotLoopFusionProducesCorrectSum(t *testing.T) {
	prog, err := compiler.Compile(sumLoopProgram())
	require.NoError(t, err)

	sawFusedAssign := false
	for _, instr := range prog.Code {
		if instr.OpCode().String() == "ADD_ASSIGN" {
			sawFusedAssign = true
		}
	}
	require.True(t, sawFusedAssign, "expected the hot loop to fuse into at least one ADD_ASSIGN")

	vm := New(prog)
	result, err := vm.Run("main", nil)
	require.NoError(t, err)
	const want = 4950 // sum(0..99)
	require.Equal(t, int64(want), result.ToInt())
}

// deepTailCallProgram builds: sub count($n, $acc) { if ($n lt 1) { return $acc }
// goto &count($n-1, $acc+1) }  called as count(N, 0), exercising the
// trampoline's frame reuse instead of native recursion.
func deepTailCallProgram() *ir.Program {
	return &ir.Program{
		Subs: []*ir.SubDef{
			{
				Name:     "count",
				NumLocal: 2,
				Body: []ir.Stmt{
					&ir.If{
						Cond: &ir.Binary{Op: "lt", Left: &ir.LocalRef{Slot: 0}, Right: &ir.Literal{Value: int64(1)}},
						Then: []ir.Stmt{
							&ir.Return{X: &ir.LocalRef{Slot: 1}},
						},
					},
					&ir.Return{X: &ir.GotoSub{
						Sub: "count",
						Args: []ir.Expr{
							&ir.Binary{Op: "-", Left: &ir.LocalRef{Slot: 0}, Right: &ir.Literal{Value: int64(1)}},
							&ir.Binary{Op: "+", Left: &ir.LocalRef{Slot: 1}, Right: &ir.Literal{Value: int64(1)}},
						},
					}},
				},
			},
		},
	}
}

func TestDeepTailCallChainTerminatesWithoutGrowingNativeStack(t *testing.T) {
	prog, err := compiler.Compile(deepTailCallProgram())
	require.NoError(t, err)
	vm := New(prog)
	const n = 1000000
	result, err := vm.Run("count", []*scalar.Scalar{scalar.NewInt(n), scalar.NewInt(0)})
	require.NoError(t, err)
	require.Equal(t, int64(n), result.ToInt())
}

// crossFrameLastProgram builds two subs: "outer" has a labelled loop
// OUTER: for (...) { inner() } where inner's body issues a MarkerReturn
// for `last OUTER` on its first iteration — resolved by the interpreter
// via Program.LoopTargets once the marker propagates back up through
// outer's CALL site.
func crossFrameLastProgram() *ir.Program {
	return &ir.Program{
		Subs: []*ir.SubDef{
			{
				Name:     "outer",
				NumLocal: 2,
				Body: []ir.Stmt{
					&ir.Assign{Slot: 0, X: &ir.Literal{Value: int64(0)}},
					&ir.LabelledBlock{
						Label: "OUTER",
						Body: []ir.Stmt{
							&ir.ForLoop{
								Label: "OUTER",
								Init:  &ir.Literal{Value: int64(0)},
								Limit: &ir.Literal{Value: int64(10)},
								Step:  &ir.Binary{Op: "+", Left: &ir.LocalRef{Slot: 1}, Right: &ir.Literal{Value: int64(1)}},
								Slot:  1,
								Body: []ir.Stmt{
									&ir.Assign{Slot: 0, X: &ir.Call{Sub: "inner", Args: []ir.Expr{&ir.LocalRef{Slot: 0}}}},
								},
							},
						},
					},
					&ir.Return{X: &ir.LocalRef{Slot: 0}},
				},
			},
			{
				Name:     "inner",
				NumLocal: 1,
				Body: []ir.Stmt{
					&ir.MarkerReturn{Kind: "last", Label: "OUTER"},
				},
			},
		},
	}
}

func TestCrossFrameLastResolvesToEnclosingLabelledLoop(t *testing.T) {
	prog, err := compiler.Compile(crossFrameLastProgram())
	require.NoError(t, err)
	require.NotEmpty(t, prog.LoopTargets, "expected at least one recorded loop target for the labelled block")

	vm := New(prog)
	result, err := vm.Run("outer", nil)
	require.NoError(t, err)
	require.NotNil(t, result, "expected outer() to return a value, not propagate the marker")
}

// labelledCrossFrameProgram nests two labelled loops in "outer" and has
// "inner" issue `last OUTER` from a frame below. If the marker's label
// survives intact it must break the OUTER loop (result 0); a lost label
// would match the innermost INNER loop instead and let the +100 step
// after it run four times.
func labelledCrossFrameProgram() *ir.Program {
	lit := func(v int64) *ir.Literal { return &ir.Literal{Value: v} }
	inc := func(slot int) ir.Expr {
		return &ir.Binary{Op: "+", Left: &ir.LocalRef{Slot: slot}, Right: lit(1)}
	}
	return &ir.Program{
		Subs: []*ir.SubDef{
			{
				Name:     "outer",
				NumLocal: 3,
				Body: []ir.Stmt{
					&ir.Assign{Slot: 0, X: lit(0)},
					&ir.ForLoop{
						Label: "OUTER", Init: lit(0), Limit: lit(4), Step: inc(1), Slot: 1,
						Body: []ir.Stmt{
							&ir.ForLoop{
								Label: "INNER", Init: lit(0), Limit: lit(4), Step: inc(2), Slot: 2,
								Body: []ir.Stmt{
									&ir.Assign{Slot: 0, X: &ir.Call{Sub: "inner", Args: []ir.Expr{&ir.LocalRef{Slot: 0}}}},
								},
							},
							&ir.Assign{Slot: 0, X: &ir.Binary{Op: "+", Left: &ir.LocalRef{Slot: 0}, Right: lit(100)}},
						},
					},
					&ir.Return{X: &ir.LocalRef{Slot: 0}},
				},
			},
			{
				Name:     "inner",
				NumLocal: 1,
				Body: []ir.Stmt{
					&ir.MarkerReturn{Kind: "last", Label: "OUTER"},
				},
			},
		},
	}
}

func TestCrossFrameLastHonorsLabelAcrossNestedLoops(t *testing.T) {
	prog, err := compiler.Compile(labelledCrossFrameProgram())
	require.NoError(t, err)

	vm := New(prog)
	result, err := vm.Run("outer", nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), result.ToInt(),
		"last OUTER from the inner frame must exit the labelled outer loop, not just the innermost")
}

// oversizeProgram builds one subroutine whose straight-line body
// compiles past the per-method instruction ceiling, forcing the
// compiler's splitter to carve it into chained parts: n increments of
// $s (slot 0) followed by a return of $s.
func oversizeProgram(n int) *ir.Program {
	body := make([]ir.Stmt, 0, n+2)
	body = append(body, &ir.Assign{Slot: 0, X: &ir.Literal{Value: int64(0)}})
	for i := 0; i < n; i++ {
		body = append(body, &ir.Assign{Slot: 0, X: &ir.Binary{
			Op:    "+",
			Left:  &ir.LocalRef{Slot: 0},
			Right: &ir.Literal{Value: int64(1)},
		}})
	}
	body = append(body, &ir.Return{X: &ir.LocalRef{Slot: 0}})
	return &ir.Program{Subs: []*ir.SubDef{{Name: "main", NumLocal: 1, Body: body}}}
}

// TestOversizeSubroutineSplitPreservesSemantics is the "semantics
// unchanged after split" property: the split body must produce the same
// result the unsplit body would, with the locals surviving the chain
// into each synthetic continuation part.
func TestOversizeSubroutineSplitPreservesSemantics(t *testing.T) {
	const n = compiler.MaxMethodInstructions + 5000
	prog, err := compiler.Compile(oversizeProgram(n))
	require.NoError(t, err)
	require.Contains(t, prog.Subroutines, "main$part1",
		"expected the oversize body to be split into at least two parts")

	vm := New(prog)
	result, err := vm.Run("main", nil)
	require.NoError(t, err)
	require.Equal(t, int64(n), result.ToInt())
}

func TestLoopControlOutsideLoopIsCompileError(t *testing.T) {
	prog := &ir.Program{
		Subs: []*ir.SubDef{
			{
				Name: "bad",
				Body: []ir.Stmt{
					&ir.LoopControl{Kind: "last"},
				},
			},
		},
	}
	_, err := compiler.Compile(prog)
	require.Error(t, err, "expected compile error for last outside of loop")
}
