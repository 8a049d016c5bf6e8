package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corani/minic/internal/ast"
	"github.com/corani/minic/internal/lexer"
)

func parse(t *testing.T, src string) *ast.CompUnit {
	t.Helper()

	lex, err := lexer.NewLexer("test.c", strings.NewReader(src))
	require.NoError(t, err)

	tokens, err := lex.Tokens()
	require.NoError(t, err)

	unit, err := New(tokens).Parse()
	require.NoError(t, err)

	return unit
}

func parseErr(t *testing.T, src string) error {
	t.Helper()

	lex, err := lexer.NewLexer("test.c", strings.NewReader(src))
	require.NoError(t, err)

	tokens, err := lex.Tokens()
	require.NoError(t, err)

	_, err = New(tokens).Parse()
	require.Error(t, err)

	return err
}

func TestParseFuncDef(t *testing.T) {
	t.Parallel()

	unit := parse(t, "int main() { return 0; }")
	require.Len(t, unit.Items, 1)

	fd, ok := unit.Items[0].(*ast.FuncDef)
	require.True(t, ok)
	require.Equal(t, "main", fd.Ident)
	require.False(t, fd.RetVoid)
	require.Empty(t, fd.Params)
	require.Len(t, fd.Body.Items, 1)

	ret, ok := fd.Body.Items[0].(*ast.Return)
	require.True(t, ok)

	lit, ok := ret.X.(*ast.IntLit)
	require.True(t, ok)
	require.Equal(t, 0, lit.Value)
}

func TestParseVoidFuncWithParams(t *testing.T) {
	t.Parallel()

	unit := parse(t, "void f(int a, int b) { return; }")

	fd, ok := unit.Items[0].(*ast.FuncDef)
	require.True(t, ok)
	require.True(t, fd.RetVoid)
	require.Len(t, fd.Params, 2)
	require.Equal(t, "a", fd.Params[0].Ident)
	require.Equal(t, "b", fd.Params[1].Ident)

	ret, ok := fd.Body.Items[0].(*ast.Return)
	require.True(t, ok)
	require.Nil(t, ret.X)
}

func TestPrecedence(t *testing.T) {
	t.Parallel()

	unit := parse(t, "int main() { return 1 + 2 * 3 < 4 && 5; }")

	fd := unit.Items[0].(*ast.FuncDef)
	ret := fd.Body.Items[0].(*ast.Return)

	// && binds loosest, then <, then +, then *.
	land, ok := ret.X.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpLogAnd, land.Op)

	rel, ok := land.Lhs.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpLt, rel.Op)

	add, ok := rel.Lhs.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpAdd, add.Op)

	mul, ok := add.Rhs.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpMul, mul.Op)
}

func TestLeftAssociativity(t *testing.T) {
	t.Parallel()

	unit := parse(t, "int main() { return 1 - 2 - 3; }")

	fd := unit.Items[0].(*ast.FuncDef)
	ret := fd.Body.Items[0].(*ast.Return)

	outer, ok := ret.X.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpSub, outer.Op)

	inner, ok := outer.Lhs.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpSub, inner.Op)

	lit, ok := outer.Rhs.(*ast.IntLit)
	require.True(t, ok)
	require.Equal(t, 3, lit.Value)
}

func TestUnaryNesting(t *testing.T) {
	t.Parallel()

	unit := parse(t, "int main() { return -!+1; }")

	fd := unit.Items[0].(*ast.FuncDef)
	ret := fd.Body.Items[0].(*ast.Return)

	neg, ok := ret.X.(*ast.Unary)
	require.True(t, ok)
	require.Equal(t, ast.UnaryMinus, neg.Op)

	not, ok := neg.X.(*ast.Unary)
	require.True(t, ok)
	require.Equal(t, ast.UnaryNot, not.Op)

	plus, ok := not.X.(*ast.Unary)
	require.True(t, ok)
	require.Equal(t, ast.UnaryPlus, plus.Op)
}

func TestAssignStatement(t *testing.T) {
	t.Parallel()

	unit := parse(t, "int main() { int a; a = 1; }")

	fd := unit.Items[0].(*ast.FuncDef)
	require.Len(t, fd.Body.Items, 2)

	decl, ok := fd.Body.Items[0].(*ast.VarDecl)
	require.True(t, ok)
	require.Len(t, decl.Defs, 1)
	require.Nil(t, decl.Defs[0].Init)

	assign, ok := fd.Body.Items[1].(*ast.Assign)
	require.True(t, ok)
	require.Equal(t, "a", assign.Target.Ident)
}

func TestAssignExpression(t *testing.T) {
	t.Parallel()

	unit := parse(t, "int main() { int x; return (x = 1) + x; }")

	fd := unit.Items[0].(*ast.FuncDef)
	ret := fd.Body.Items[1].(*ast.Return)

	add, ok := ret.X.(*ast.Binary)
	require.True(t, ok)

	assign, ok := add.Lhs.(*ast.Assign)
	require.True(t, ok)
	require.Equal(t, "x", assign.Target.Ident)
}

func TestMultiDefDecls(t *testing.T) {
	t.Parallel()

	unit := parse(t, "int a = 1, b, c = 2; const int x = 1, y = 2;")
	require.Len(t, unit.Items, 2)

	vd, ok := unit.Items[0].(*ast.VarDecl)
	require.True(t, ok)
	require.Len(t, vd.Defs, 3)
	require.NotNil(t, vd.Defs[0].Init)
	require.Nil(t, vd.Defs[1].Init)
	require.NotNil(t, vd.Defs[2].Init)

	cd, ok := unit.Items[1].(*ast.ConstDecl)
	require.True(t, ok)
	require.Len(t, cd.Defs, 2)
}

func TestIfElseWhile(t *testing.T) {
	t.Parallel()

	unit := parse(t, `
int main() {
    int i = 0;
    while (i < 10) {
        if (i == 5) { break; } else { i = i + 1; }
        continue;
    }
    return i;
}`)

	fd := unit.Items[0].(*ast.FuncDef)

	loop, ok := fd.Body.Items[1].(*ast.While)
	require.True(t, ok)

	body, ok := loop.Body.(*ast.Block)
	require.True(t, ok)
	require.Len(t, body.Items, 2)

	cond, ok := body.Items[0].(*ast.If)
	require.True(t, ok)
	require.NotNil(t, cond.Else)

	_, ok = body.Items[1].(*ast.Continue)
	require.True(t, ok)
}

func TestDanglingElse(t *testing.T) {
	t.Parallel()

	unit := parse(t, "int main() { if (1) if (2) return 1; else return 2; return 0; }")

	fd := unit.Items[0].(*ast.FuncDef)

	outer, ok := fd.Body.Items[0].(*ast.If)
	require.True(t, ok)
	require.Nil(t, outer.Else)

	inner, ok := outer.Then.(*ast.If)
	require.True(t, ok)
	require.NotNil(t, inner.Else)
}

func TestCallArguments(t *testing.T) {
	t.Parallel()

	unit := parse(t, "int main() { return f(1, g(), 2 + 3); }")

	fd := unit.Items[0].(*ast.FuncDef)
	ret := fd.Body.Items[0].(*ast.Return)

	call, ok := ret.X.(*ast.Call)
	require.True(t, ok)
	require.Equal(t, "f", call.Ident)
	require.Len(t, call.Args, 3)

	inner, ok := call.Args[1].(*ast.Call)
	require.True(t, ok)
	require.Equal(t, "g", inner.Ident)
	require.Empty(t, inner.Args)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tt := []struct {
		name string
		src  string
		want string
	}{
		{name: "assign to literal", src: "int main() { 1 = 2; }", want: "not assignable"},
		{name: "void variable", src: "void a;", want: "declared void"},
		{name: "missing semicolon", src: "int main() { return 0 }", want: "expected"},
		{name: "const without init", src: "const int a;", want: "expected"},
		{name: "unterminated block", src: "int main() { return 0;", want: "unterminated block"},
		{name: "missing param type", src: "int f(a) { return 0; }", want: "expected"},
	}

	for _, tc := range tt {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := parseErr(t, tc.src)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
