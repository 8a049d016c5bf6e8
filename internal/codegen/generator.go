package codegen

import (
	"fmt"

	"github.com/corani/minic/internal/kir"
)

// Generate lowers a raw KIR program to RV32IM assembly text.
//
// Every instruction lowers in isolation: operands materialize into freshly
// claimed scratch registers, the result spills back to the instruction's
// frame slot, and all registers free before the next instruction. There are
// no cross-instruction register dependencies, so one small pool suffices.
func Generate(prog *kir.Program) (string, error) {
	g := &generator{ctx: NewContext()}
	g.p = newPrinter(g.ctx)

	for _, global := range prog.Globals {
		if err := g.global(global); err != nil {
			return "", err
		}
	}

	for _, fn := range prog.Funcs {
		if err := g.function(fn); err != nil {
			return "", err
		}
	}

	return g.p.String(), nil
}

type generator struct {
	ctx *Context
	p   *printer
}

func (g *generator) global(v *kir.Value) error {
	name := g.ctx.DefineGlobal(v)

	g.p.Data()
	g.p.Globl(name)
	g.p.Label(name)

	switch v.Init.Kind {
	case kir.Integer:
		g.p.Word(v.Init.Int)
	case kir.ZeroInit:
		g.p.Zero(4)
	default:
		return fmt.Errorf("global %s: unsupported initializer (%s)", name, v.Init.Kind)
	}

	return nil
}

func (g *generator) function(fn *kir.Function) error {
	if fn.Declared() {
		return nil
	}

	// Frame: one slot per value-producing instruction, one for the saved
	// return address, plus outgoing stack arguments; aligned to 16 bytes.
	slots := 0
	outgoing := 0

	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			if !inst.Unit {
				slots++
			}

			if inst.Kind == kir.Call && len(inst.Args) > 8 {
				outgoing = max(outgoing, len(inst.Args)-8)
			}
		}
	}

	frame := (slots + 1 + outgoing) * 4
	frame = (frame + 15) / 16 * 16

	if err := g.ctx.EnterFunction(fn.Name, frame, outgoing); err != nil {
		return err
	}

	g.p.Text()
	g.p.Globl(fn.Name)
	g.p.Label(fn.Name)

	if err := g.p.Addi("sp", "sp", -frame); err != nil {
		return err
	}

	if err := g.p.Sw("ra", "sp", frame-4); err != nil {
		return err
	}

	for _, bb := range fn.Blocks {
		// The entry block is entered by fall-through; emitting its label
		// would clash between functions.
		if bb.Name != "entry" {
			g.p.Label(bb.Name)
		}

		for _, inst := range bb.Insts {
			if err := g.inst(inst); err != nil {
				return fmt.Errorf("function %s: %w", fn.Name, err)
			}
		}
	}

	return nil
}

func (g *generator) inst(v *kir.Value) error {
	switch v.Kind {
	case kir.Alloc:
		// Storage is just a frame slot; nothing to emit.
		return g.ctx.Plan().Ensure(v)
	case kir.Load:
		return g.load(v)
	case kir.Store:
		return g.store(v)
	case kir.Binary:
		return g.binary(v)
	case kir.Branch:
		return g.branch(v)
	case kir.Jump:
		g.p.Jump(v.Target.Name)

		return nil
	case kir.Call:
		return g.call(v)
	case kir.Return:
		return g.ret(v)
	default:
		return fmt.Errorf("unsupported KIR opcode (%s)", v.Kind)
	}
}

func isZero(v *kir.Value) bool {
	return v.Kind == kir.Integer && v.Int == 0
}

// materialize fills reg with the operand's value: immediates via li,
// parameter references from the argument registers or the caller's frame,
// everything else from its own stack slot.
func (g *generator) materialize(v *kir.Value, reg string) error {
	switch v.Kind {
	case kir.Integer:
		if reg != "x0" {
			g.p.Li(reg, v.Int)
		}

		return nil
	case kir.FuncArgRef:
		if v.Int < 8 {
			g.p.Mv(reg, fmt.Sprintf("a%d", v.Int))

			return nil
		}

		// The ninth argument onward lives at the bottom of the caller's
		// frame, just above ours.
		return g.p.Lw(reg, "sp", g.ctx.Plan().FrameSize()+(v.Int-8)*4)
	default:
		off, err := g.ctx.Plan().OffsetOf(v)
		if err != nil {
			return err
		}

		return g.p.Lw(reg, "sp", off)
	}
}

// claimReg allocates a scratch register for the value and returns its name.
func (g *generator) claimReg(v *kir.Value, zero bool) (string, error) {
	if err := g.ctx.AllocateReg(v, zero); err != nil {
		return "", err
	}

	return g.ctx.RegOf(v)
}

// operandReg claims a register for the operand and fills it.
func (g *generator) operandReg(v *kir.Value) (string, error) {
	reg, err := g.claimReg(v, isZero(v))
	if err != nil {
		return "", err
	}

	return reg, g.materialize(v, reg)
}

// spill writes the instruction's result register back to its frame slot.
func (g *generator) spill(v *kir.Value, reg string) error {
	if err := g.ctx.Plan().Ensure(v); err != nil {
		return err
	}

	off, err := g.ctx.Plan().OffsetOf(v)
	if err != nil {
		return err
	}

	return g.p.Sw(reg, "sp", off)
}

func (g *generator) load(v *kir.Value) error {
	reg, err := g.claimReg(v, false)
	if err != nil {
		return err
	}

	if v.Src.Kind == kir.GlobalAlloc {
		name, err := g.ctx.GlobalName(v.Src)
		if err != nil {
			return err
		}

		g.p.La(reg, name)

		if err := g.p.Lw(reg, reg, 0); err != nil {
			return err
		}
	} else {
		off, err := g.ctx.Plan().OffsetOf(v.Src)
		if err != nil {
			return err
		}

		if err := g.p.Lw(reg, "sp", off); err != nil {
			return err
		}
	}

	if err := g.spill(v, reg); err != nil {
		return err
	}

	return g.ctx.FreeReg(v)
}

func (g *generator) store(v *kir.Value) error {
	reg, err := g.claimReg(v, isZero(v.Val))
	if err != nil {
		return err
	}

	if err := g.materialize(v.Val, reg); err != nil {
		return err
	}

	if v.Dest.Kind == kir.GlobalAlloc {
		name, err := g.ctx.GlobalName(v.Dest)
		if err != nil {
			return err
		}

		addr, err := g.claimReg(v.Dest, false)
		if err != nil {
			return err
		}

		g.p.La(addr, name)

		if err := g.p.Sw(reg, addr, 0); err != nil {
			return err
		}

		if err := g.ctx.FreeReg(v.Dest); err != nil {
			return err
		}
	} else {
		if err := g.ctx.Plan().Ensure(v.Dest); err != nil {
			return err
		}

		off, err := g.ctx.Plan().OffsetOf(v.Dest)
		if err != nil {
			return err
		}

		if err := g.p.Sw(reg, "sp", off); err != nil {
			return err
		}
	}

	return g.ctx.FreeReg(v)
}

func (g *generator) binary(v *kir.Value) error {
	lhs, err := g.operandReg(v.Lhs)
	if err != nil {
		return err
	}

	rhs, err := g.operandReg(v.Rhs)
	if err != nil {
		return err
	}

	// Both operands are consumed by the instruction, so their registers can
	// be reused for the result.
	if err := g.ctx.FreeReg(v.Lhs); err != nil {
		return err
	}

	if err := g.ctx.FreeReg(v.Rhs); err != nil {
		return err
	}

	reg, err := g.claimReg(v, false)
	if err != nil {
		return err
	}

	switch v.Op {
	case "add":
		g.p.Add(reg, lhs, rhs)
	case "sub":
		g.p.Sub(reg, lhs, rhs)
	case "mul":
		g.p.Mul(reg, lhs, rhs)
	case "div":
		g.p.Div(reg, lhs, rhs)
	case "mod":
		g.p.Rem(reg, lhs, rhs)
	case "and":
		g.p.And(reg, lhs, rhs)
	case "or":
		g.p.Or(reg, lhs, rhs)
	case "eq":
		g.p.Xor(reg, lhs, rhs)
		g.p.Seqz(reg, reg)
	case "ne":
		g.p.Xor(reg, lhs, rhs)
		g.p.Snez(reg, reg)
	case "gt":
		g.p.Sgt(reg, lhs, rhs)
	case "lt":
		g.p.Slt(reg, lhs, rhs)
	case "ge":
		g.p.Slt(reg, lhs, rhs)
		g.p.Seqz(reg, reg)
	case "le":
		g.p.Sgt(reg, lhs, rhs)
		g.p.Seqz(reg, reg)
	default:
		return fmt.Errorf("unsupported binary operator %q", v.Op)
	}

	if err := g.spill(v, reg); err != nil {
		return err
	}

	return g.ctx.FreeReg(v)
}

func (g *generator) branch(v *kir.Value) error {
	reg, err := g.claimReg(v, isZero(v.Cond))
	if err != nil {
		return err
	}

	if err := g.materialize(v.Cond, reg); err != nil {
		return err
	}

	g.p.Bnez(reg, v.True.Name)
	g.p.Jump(v.False.Name)

	return g.ctx.FreeReg(v)
}

func (g *generator) call(v *kir.Value) error {
	n := len(v.Args)

	for i := 0; i < n && i < 8; i++ {
		arg := v.Args[i]
		target := fmt.Sprintf("a%d", i)

		if arg.Kind == kir.Integer {
			g.p.Li(target, arg.Int)

			continue
		}

		reg, err := g.operandReg(arg)
		if err != nil {
			return err
		}

		g.p.Mv(target, reg)

		if err := g.ctx.FreeReg(arg); err != nil {
			return err
		}
	}

	// Arguments beyond the eighth go to the bottom of our frame, where the
	// callee finds them above its own.
	for i := 8; i < n; i++ {
		reg, err := g.operandReg(v.Args[i])
		if err != nil {
			return err
		}

		if err := g.p.Sw(reg, "sp", (i-8)*4); err != nil {
			return err
		}

		if err := g.ctx.FreeReg(v.Args[i]); err != nil {
			return err
		}
	}

	g.p.Call(v.Callee.Name)

	if !v.Unit {
		return g.spill(v, "a0")
	}

	return nil
}

func (g *generator) ret(v *kir.Value) error {
	switch {
	case v.Ret == nil:
		g.p.Li("a0", 0)
	case v.Ret.Kind == kir.Integer:
		g.p.Li("a0", v.Ret.Int)
	default:
		if err := g.materialize(v.Ret, "a0"); err != nil {
			return err
		}
	}

	frame := g.ctx.Plan().FrameSize()

	if err := g.p.Lw("ra", "sp", frame-4); err != nil {
		return err
	}

	if err := g.p.Addi("sp", "sp", frame); err != nil {
		return err
	}

	g.p.Ret()

	return nil
}
