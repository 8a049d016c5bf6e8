package ir

import (
	"fmt"
	"strings"

	"github.com/corani/minic/internal/ast"
)

// runtimeDecls is the integer I/O runtime every module is linked against.
var runtimeDecls = []struct {
	name    string
	params  int
	retUnit bool
}{
	{name: "getint", params: 0, retUnit: false},
	{name: "getch", params: 0, retUnit: false},
	{name: "putint", params: 1, retUnit: true},
	{name: "putch", params: 1, retUnit: true},
	{name: "starttime", params: 0, retUnit: true},
	{name: "stoptime", params: 0, retUnit: true},
}

// Lower walks the AST in a single pass and renders the module as KIR text.
func Lower(unit *ast.CompUnit) (string, error) {
	l := &lowerer{ctx: NewContext()}

	if err := l.compUnit(unit); err != nil {
		return "", err
	}

	return l.out.String(), nil
}

type lowerer struct {
	ctx *Context
	out strings.Builder
}

func (l *lowerer) emitf(format string, args ...any) {
	fmt.Fprintf(&l.out, format, args...)
}

func (l *lowerer) compUnit(unit *ast.CompUnit) error {
	for _, rt := range runtimeDecls {
		params := strings.TrimSuffix(strings.Repeat("i32, ", rt.params), ", ")
		if rt.retUnit {
			l.emitf("decl @%s(%s)\n", rt.name, params)
		} else {
			l.emitf("decl @%s(%s): i32\n", rt.name, params)
		}

		l.ctx.DeclareFunc(rt.name, rt.retUnit)
	}

	// Every function is visible before any body lowers, so mutual recursion
	// needs no forward declarations.
	for _, item := range unit.Items {
		if fd, ok := item.(*ast.FuncDef); ok {
			l.ctx.DeclareFunc(fd.Ident, fd.RetVoid)
		}
	}

	for _, item := range unit.Items {
		switch item := item.(type) {
		case *ast.FuncDef:
			if err := l.funcDef(item); err != nil {
				return err
			}
		case *ast.VarDecl:
			if err := l.globalVarDecl(item); err != nil {
				return err
			}
		case *ast.ConstDecl:
			if err := l.constDecl(item); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported top-level item %T", item)
		}
	}

	return nil
}

func (l *lowerer) funcDef(fd *ast.FuncDef) error {
	l.ctx.ResetAllocations()

	l.out.WriteString("\nfun @" + fd.Ident + "(")

	for i := range fd.Params {
		if i > 0 {
			l.out.WriteString(", ")
		}

		l.emitf("%%arg_%d: i32", i)
	}

	l.out.WriteString(")")

	if !fd.RetVoid {
		l.out.WriteString(": i32")
	}

	l.out.WriteString(" {\n%entry:\n")

	// Parameters live in the same frame as the body's own locals, so a body
	// declaration of the same name shadows the parameter at a deeper block
	// only.
	l.ctx.EnterScope()

	for i, param := range fd.Params {
		l.ctx.Bind(param.Ident, Symbol{Kind: SymbolVar})

		sym, _ := l.ctx.Resolve(param.Ident)
		name := fmt.Sprintf("%s_%d", param.Ident, sym.Val)

		if !l.ctx.WasAllocated(param.Ident) {
			l.emitf("\t@%s = alloc i32\n", name)
		}

		l.ctx.MarkAllocated(param.Ident)
		l.emitf("\tstore %%arg_%d, @%s\n", i, name)
	}

	res, err := l.stmtList(fd.Body.Items)

	l.ctx.LeaveScope()

	if err != nil {
		return err
	}

	// A body that can fall off the end still has to produce a terminator.
	if !res.Returned {
		if fd.RetVoid {
			l.out.WriteString("\tret\n")
		} else {
			l.out.WriteString("\tret 0\n")
		}
	}

	l.out.WriteString("}\n")

	return nil
}

// stmtList lowers items in source order and stops at the first one that
// definitely transfers control: everything after it is unreachable and is
// not emitted.
func (l *lowerer) stmtList(items []ast.Stmt) (Value, error) {
	for _, item := range items {
		res, err := l.stmt(item)
		if err != nil {
			return Value{}, err
		}

		if res.Terminated() {
			return res, nil
		}
	}

	return Value{}, nil
}

func (l *lowerer) block(b *ast.Block) (Value, error) {
	l.ctx.EnterScope()
	res, err := l.stmtList(b.Items)
	l.ctx.LeaveScope()

	return res, err
}

func (l *lowerer) stmt(s ast.Stmt) (Value, error) {
	switch s := s.(type) {
	case *ast.ConstDecl:
		return Value{}, l.constDecl(s)
	case *ast.VarDecl:
		return Value{}, l.varDecl(s)
	case *ast.Assign:
		_, err := l.assign(s)

		return Value{}, err
	case *ast.ExprStmt:
		if s.X != nil {
			if _, err := l.expr(s.X); err != nil {
				return Value{}, err
			}
		}

		return Value{}, nil
	case *ast.Block:
		return l.block(s)
	case *ast.Return:
		return l.returnStmt(s)
	case *ast.If:
		return l.ifStmt(s)
	case *ast.While:
		return l.whileStmt(s)
	case *ast.Break:
		loop, ok := l.ctx.CurrentLoop()
		if !ok {
			return Value{}, s.Loc.Errorf("break statement outside a loop")
		}

		l.emitf("\tjump %s\n", loop.Break)

		return Value{Interrupted: true}, nil
	case *ast.Continue:
		loop, ok := l.ctx.CurrentLoop()
		if !ok {
			return Value{}, s.Loc.Errorf("continue statement outside a loop")
		}

		l.emitf("\tjump %s\n", loop.Continue)

		return Value{Interrupted: true}, nil
	default:
		return Value{}, s.Location().Errorf("unsupported statement %T", s)
	}
}

// constDecl folds each definition into a Constant symbol; constants never
// get storage, at any scope.
func (l *lowerer) constDecl(d *ast.ConstDecl) error {
	for _, def := range d.Defs {
		v, err := l.expr(def.Init)
		if err != nil {
			return err
		}

		if v.Kind != Immediate {
			return def.Loc.Errorf("initializer of constant %q is not a constant expression", def.Ident)
		}

		l.ctx.Bind(def.Ident, Symbol{Kind: SymbolConst, Val: v.Num})
	}

	return nil
}

func (l *lowerer) varDecl(d *ast.VarDecl) error {
	for _, def := range d.Defs {
		var init Value

		// The initializer sees the outer binding: "int a = a + 1;" reads the
		// shadowed a.
		hasInit := def.Init != nil
		if hasInit {
			v, err := l.expr(def.Init)
			if err != nil {
				return err
			}

			init = v
		}

		l.ctx.Bind(def.Ident, Symbol{Kind: SymbolVar})

		sym, _ := l.ctx.Resolve(def.Ident)
		name := fmt.Sprintf("%s_%d", def.Ident, sym.Val)

		if !l.ctx.WasAllocated(def.Ident) {
			l.emitf("\t@%s = alloc i32\n", name)
		}

		l.ctx.MarkAllocated(def.Ident)

		if hasInit {
			l.emitf("\tstore %s, @%s\n", init, name)
		}
	}

	return nil
}

func (l *lowerer) globalVarDecl(d *ast.VarDecl) error {
	for _, def := range d.Defs {
		init := 0

		hasInit := def.Init != nil
		if hasInit {
			v, err := l.expr(def.Init)
			if err != nil {
				return err
			}

			if v.Kind != Immediate {
				return def.Loc.Errorf("initializer of global %q is not a constant expression", def.Ident)
			}

			init = v.Num
		}

		l.ctx.Bind(def.Ident, Symbol{Kind: SymbolVar})

		sym, _ := l.ctx.Resolve(def.Ident)
		name := fmt.Sprintf("%s_%d", def.Ident, sym.Val)

		if hasInit {
			l.emitf("global @%s = alloc i32, %d\n", name, init)
		} else {
			l.emitf("global @%s = alloc i32, zeroinit\n", name)
		}
	}

	return nil
}

// assign stores the right-hand side into the target and yields the stored
// value, so assignment composes as an expression.
func (l *lowerer) assign(a *ast.Assign) (Value, error) {
	v, err := l.expr(a.Value)
	if err != nil {
		return Value{}, err
	}

	sym, ok := l.ctx.Resolve(a.Target.Ident)
	if !ok {
		return Value{}, a.Target.Loc.Errorf("undefined identifier %q", a.Target.Ident)
	}

	if sym.Kind == SymbolConst {
		return Value{}, a.Target.Loc.Errorf("cannot assign to constant %q", a.Target.Ident)
	}

	l.emitf("\tstore %s, @%s_%d\n", v, a.Target.Ident, sym.Val)

	return v, nil
}

func (l *lowerer) returnStmt(r *ast.Return) (Value, error) {
	if r.X == nil {
		l.out.WriteString("\tret\n")

		return Value{Returned: true}, nil
	}

	v, err := l.expr(r.X)
	if err != nil {
		return Value{}, err
	}

	l.emitf("\tret %s\n", v)

	return Value{Returned: true}, nil
}

func (l *lowerer) ifStmt(s *ast.If) (Value, error) {
	k := l.ctx.NextIf()
	thenLabel := fmt.Sprintf("%%then_%d", k)
	elseLabel := fmt.Sprintf("%%else_%d", k)
	endLabel := fmt.Sprintf("%%end_%d", k)

	cond, err := l.expr(s.Cond)
	if err != nil {
		return Value{}, err
	}

	falseTarget := endLabel
	if s.Else != nil {
		falseTarget = elseLabel
	}

	l.emitf("\tbr %s, %s, %s\n", cond, thenLabel, falseTarget)

	l.emitf("%s:\n", thenLabel)

	rthen, err := l.stmt(s.Then)
	if err != nil {
		return Value{}, err
	}

	// An arm that already left the block must not get a second terminator.
	if !rthen.Terminated() {
		l.emitf("\tjump %s\n", endLabel)
	}

	var relse Value

	if s.Else != nil {
		l.emitf("%s:\n", elseLabel)

		relse, err = l.stmt(s.Else)
		if err != nil {
			return Value{}, err
		}

		if !relse.Terminated() {
			l.emitf("\tjump %s\n", endLabel)
		}
	}

	// When both arms leave on their own the join block would be empty and
	// unreachable, so it is not emitted.
	res := Value{}

	if rthen.Terminated() && s.Else != nil && relse.Terminated() {
		res.Returned = rthen.Returned && relse.Returned
		res.Interrupted = !res.Returned
	} else {
		l.emitf("%s:\n", endLabel)
	}

	return res, nil
}

func (l *lowerer) whileStmt(s *ast.While) (Value, error) {
	k := l.ctx.NextWhile()
	entry := fmt.Sprintf("%%while_entry_%d", k)
	body := fmt.Sprintf("%%while_body_%d", k)
	end := fmt.Sprintf("%%while_end_%d", k)

	// The condition re-evaluates on every iteration, so it lives in its own
	// block that both the fall-in and the back edge jump to.
	l.emitf("\tjump %s\n", entry)
	l.emitf("%s:\n", entry)

	cond, err := l.expr(s.Cond)
	if err != nil {
		return Value{}, err
	}

	l.emitf("\tbr %s, %s, %s\n", cond, body, end)
	l.emitf("%s:\n", body)

	l.ctx.PushLoop(entry, end)
	r, err := l.stmt(s.Body)
	l.ctx.PopLoop()

	if err != nil {
		return Value{}, err
	}

	if !r.Terminated() {
		l.emitf("\tjump %s\n", entry)
	}

	l.emitf("%s:\n", end)

	// The body may run zero times, so neither flag propagates.
	return Value{}, nil
}

func (l *lowerer) expr(e ast.Expr) (Value, error) {
	switch e := e.(type) {
	case *ast.IntLit:
		return Imm(e.Value), nil
	case *ast.LVal:
		return l.lval(e)
	case *ast.Unary:
		return l.unary(e)
	case *ast.Binary:
		switch e.Op {
		case ast.OpLogAnd:
			return l.logicalAnd(e)
		case ast.OpLogOr:
			return l.logicalOr(e)
		}

		return l.binary(e)
	case *ast.Call:
		return l.call(e)
	case *ast.Assign:
		return l.assign(e)
	default:
		return Value{}, e.Location().Errorf("unsupported expression %T", e)
	}
}

func (l *lowerer) lval(e *ast.LVal) (Value, error) {
	sym, ok := l.ctx.Resolve(e.Ident)
	if !ok {
		return Value{}, e.Loc.Errorf("undefined identifier %q", e.Ident)
	}

	if sym.Kind == SymbolConst {
		return Imm(sym.Val), nil
	}

	t := l.ctx.NewTemp()
	l.emitf("\t%s = load @%s_%d\n", t, e.Ident, sym.Val)

	return t, nil
}

func (l *lowerer) unary(e *ast.Unary) (Value, error) {
	v, err := l.expr(e.X)
	if err != nil {
		return Value{}, err
	}

	if v.Kind == Immediate {
		switch e.Op {
		case ast.UnaryPlus:
			return v, nil
		case ast.UnaryMinus:
			return Imm(-v.Num), nil
		case ast.UnaryNot:
			return Imm(boolToInt(v.Num == 0)), nil
		}
	}

	switch e.Op {
	case ast.UnaryPlus:
		// Unary plus folds away entirely.
		return v, nil
	case ast.UnaryMinus:
		t := l.ctx.NewTemp()
		l.emitf("\t%s = sub 0, %s\n", t, v)

		return t, nil
	case ast.UnaryNot:
		t := l.ctx.NewTemp()
		l.emitf("\t%s = eq 0, %s\n", t, v)

		return t, nil
	}

	return Value{}, e.Loc.Errorf("unsupported unary operator %s", e.Op)
}

var kirOps = map[ast.BinOp]string{
	ast.OpAdd: "add",
	ast.OpSub: "sub",
	ast.OpMul: "mul",
	ast.OpDiv: "div",
	ast.OpMod: "mod",
	ast.OpLt:  "lt",
	ast.OpGt:  "gt",
	ast.OpLe:  "le",
	ast.OpGe:  "ge",
	ast.OpEq:  "eq",
	ast.OpNe:  "ne",
}

func (l *lowerer) binary(e *ast.Binary) (Value, error) {
	lhs, err := l.expr(e.Lhs)
	if err != nil {
		return Value{}, err
	}

	rhs, err := l.expr(e.Rhs)
	if err != nil {
		return Value{}, err
	}

	if lhs.Kind == Immediate && rhs.Kind == Immediate {
		return l.fold(e, lhs.Num, rhs.Num)
	}

	op, ok := kirOps[e.Op]
	if !ok {
		return Value{}, e.Loc.Errorf("unsupported binary operator %s", e.Op)
	}

	t := l.ctx.NewTemp()
	l.emitf("\t%s = %s %s, %s\n", t, op, lhs, rhs)

	return t, nil
}

// fold evaluates a binary operator over two immediates with i32 wraparound.
func (l *lowerer) fold(e *ast.Binary, a, b int) (Value, error) {
	switch e.Op {
	case ast.OpAdd:
		return Imm(int(int32(a) + int32(b))), nil
	case ast.OpSub:
		return Imm(int(int32(a) - int32(b))), nil
	case ast.OpMul:
		return Imm(int(int32(a) * int32(b))), nil
	case ast.OpDiv:
		if b == 0 {
			return Value{}, e.Loc.Errorf("division by zero in constant expression")
		}

		return Imm(int(int32(a) / int32(b))), nil
	case ast.OpMod:
		if b == 0 {
			return Value{}, e.Loc.Errorf("division by zero in constant expression")
		}

		return Imm(int(int32(a) % int32(b))), nil
	case ast.OpLt:
		return Imm(boolToInt(a < b)), nil
	case ast.OpGt:
		return Imm(boolToInt(a > b)), nil
	case ast.OpLe:
		return Imm(boolToInt(a <= b)), nil
	case ast.OpGe:
		return Imm(boolToInt(a >= b)), nil
	case ast.OpEq:
		return Imm(boolToInt(a == b)), nil
	case ast.OpNe:
		return Imm(boolToInt(a != b)), nil
	}

	return Value{}, e.Loc.Errorf("unsupported binary operator %s", e.Op)
}

// logicalAnd lowers "&&". A constant left operand folds the whole thing;
// otherwise the right operand only runs behind a branch, and the combined
// result lives in an alloc-backed slot both paths store to.
func (l *lowerer) logicalAnd(e *ast.Binary) (Value, error) {
	lhs, err := l.expr(e.Lhs)
	if err != nil {
		return Value{}, err
	}

	if lhs.Kind == Immediate {
		if lhs.Num == 0 {
			return Imm(0), nil
		}

		rhs, err := l.expr(e.Rhs)
		if err != nil {
			return Value{}, err
		}

		if rhs.Kind == Immediate {
			return Imm(boolToInt(rhs.Num != 0)), nil
		}

		t := l.ctx.NewTemp()
		l.emitf("\t%s = ne %s, 0\n", t, rhs)

		return t, nil
	}

	k := l.ctx.NextAnd()
	second := fmt.Sprintf("%%and_second_operator_%d", k)
	end := fmt.Sprintf("%%and_end_%d", k)
	slot := fmt.Sprintf("@and_result_in_memory_%d", k)

	first := l.ctx.NewTemp()
	l.emitf("\t%s = ne %s, 0\n", first, lhs)
	l.emitf("\t%s = alloc i32\n", slot)
	l.emitf("\tstore %s, %s\n", first, slot)
	l.emitf("\tbr %s, %s, %s\n", first, second, end)

	l.emitf("%s:\n", second)

	rhs, err := l.expr(e.Rhs)
	if err != nil {
		return Value{}, err
	}

	norm := l.ctx.NewTemp()
	l.emitf("\t%s = ne %s, 0\n", norm, rhs)

	combined := l.ctx.NewTemp()
	l.emitf("\t%s = and %s, %s\n", combined, first, norm)
	l.emitf("\tstore %s, %s\n", combined, slot)
	l.emitf("\tjump %s\n", end)

	l.emitf("%s:\n", end)

	result := l.ctx.NewTemp()
	l.emitf("\t%s = load %s\n", result, slot)

	return result, nil
}

// logicalOr mirrors logicalAnd with the branch targets swapped.
func (l *lowerer) logicalOr(e *ast.Binary) (Value, error) {
	lhs, err := l.expr(e.Lhs)
	if err != nil {
		return Value{}, err
	}

	if lhs.Kind == Immediate {
		if lhs.Num != 0 {
			return Imm(1), nil
		}

		rhs, err := l.expr(e.Rhs)
		if err != nil {
			return Value{}, err
		}

		if rhs.Kind == Immediate {
			return Imm(boolToInt(rhs.Num != 0)), nil
		}

		t := l.ctx.NewTemp()
		l.emitf("\t%s = ne %s, 0\n", t, rhs)

		return t, nil
	}

	k := l.ctx.NextOr()
	second := fmt.Sprintf("%%or_second_operator_%d", k)
	end := fmt.Sprintf("%%or_end_%d", k)
	slot := fmt.Sprintf("@or_result_in_memory_%d", k)

	first := l.ctx.NewTemp()
	l.emitf("\t%s = ne %s, 0\n", first, lhs)
	l.emitf("\t%s = alloc i32\n", slot)
	l.emitf("\tstore %s, %s\n", first, slot)
	l.emitf("\tbr %s, %s, %s\n", first, end, second)

	l.emitf("%s:\n", second)

	rhs, err := l.expr(e.Rhs)
	if err != nil {
		return Value{}, err
	}

	norm := l.ctx.NewTemp()
	l.emitf("\t%s = ne %s, 0\n", norm, rhs)

	combined := l.ctx.NewTemp()
	l.emitf("\t%s = or %s, %s\n", combined, first, norm)
	l.emitf("\tstore %s, %s\n", combined, slot)
	l.emitf("\tjump %s\n", end)

	l.emitf("%s:\n", end)

	result := l.ctx.NewTemp()
	l.emitf("\t%s = load %s\n", result, slot)

	return result, nil
}

func (l *lowerer) call(e *ast.Call) (Value, error) {
	retUnit, ok := l.ctx.LookupFunc(e.Ident)
	if !ok {
		return Value{}, e.Loc.Errorf("call to undefined function %q", e.Ident)
	}

	args := make([]string, 0, len(e.Args))

	for _, arg := range e.Args {
		v, err := l.expr(arg)
		if err != nil {
			return Value{}, err
		}

		args = append(args, v.String())
	}

	if retUnit {
		l.emitf("\tcall @%s(%s)\n", e.Ident, strings.Join(args, ", "))

		return Value{}, nil
	}

	t := l.ctx.NewTemp()
	l.emitf("\t%s = call @%s(%s)\n", t, e.Ident, strings.Join(args, ", "))

	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
