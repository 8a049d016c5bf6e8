package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestEndToEndKoopa(t *testing.T) {
	t.Parallel()

	got, err := CompileSource(ModeKoopa, "test.c", "const int N = 3 + 4 * 2; int main() { return N; }")
	require.NoError(t, err)

	want := `decl @getint(): i32
decl @getch(): i32
decl @putint(i32)
decl @putch(i32)
decl @starttime()
decl @stoptime()

fun @main(): i32 {
%entry:
	ret 11
}
`

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("KIR mismatch (-want +got):\n%s", diff)
	}
}

func TestEndToEndRISCV(t *testing.T) {
	t.Parallel()

	got, err := CompileSource(ModeRISCV, "test.c", "int main() { return 0; }")
	require.NoError(t, err)

	want := "\n\t.text\n" +
		"\t.globl main\n" +
		"main:\n" +
		"\taddi sp, sp, -16\n" +
		"\tsw ra, 12(sp)\n" +
		"\tli a0, 0\n" +
		"\tlw ra, 12(sp)\n" +
		"\taddi sp, sp, 16\n" +
		"\tret\n"

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assembly mismatch (-want +got):\n%s", diff)
	}
}

func TestEndToEndGlobals(t *testing.T) {
	t.Parallel()

	src := "int a; int f(int x) { return x + a; } int main() { a = 5; return f(3); }"

	got, err := CompileSource(ModeRISCV, "test.c", src)
	require.NoError(t, err)

	// The global becomes a renamed .data symbol, read via la+lw and written
	// via la+sw.
	require.Contains(t, got, "\n\t.data\n\t.globl global_var_0\nglobal_var_0:\n\t.zero 4\n")
	require.Contains(t, got, "\tla t0, global_var_0\n\tlw t0, 0(t0)\n")
	require.Contains(t, got, "\tla t1, global_var_0\n\tsw t0, 0(t1)\n")
	require.Contains(t, got, "\tli a0, 3\n\tcall f\n")
}

func TestEndToEndShortCircuit(t *testing.T) {
	t.Parallel()

	src := "int main() { int x = 0; return (0 && (x = 1)) + x; }"

	got, err := CompileSource(ModeRISCV, "test.c", src)
	require.NoError(t, err)

	// The right operand of && is elided at compile time, so nothing ever
	// stores 1 into x and the program returns 0.
	require.NotContains(t, got, "li t0, 1")
}

func TestEndToEndControlFlow(t *testing.T) {
	t.Parallel()

	src := `
int fib(int n) {
    if (n < 2) { return n; }
    return fib(n - 1) + fib(n - 2);
}

int main() {
    int i = 0;
    int sum = 0;
    while (i < 10) {
        sum = sum + fib(i);
        i = i + 1;
    }
    putint(sum);
    return 0;
}`

	asm, err := CompileSource(ModeRISCV, "test.c", src)
	require.NoError(t, err)

	require.Contains(t, asm, "fib:")
	require.Contains(t, asm, "\tcall fib\n")
	require.Contains(t, asm, "\tcall putint\n")
	require.Contains(t, asm, "while_entry_1:")
	require.Contains(t, asm, "\tbnez ")
}

func TestCompileTwiceIsByteIdentical(t *testing.T) {
	t.Parallel()

	src := `
int g = 3;
int f(int a, int b) { return a % b && g; }
int main() {
    int i = 0;
    while (i < 5) {
        if (f(i, 2)) { putint(i); } else { putch(46); }
        i = i + 1;
    }
    return 0;
}`

	for _, mode := range []Mode{ModeKoopa, ModeRISCV} {
		first, err := CompileSource(mode, "test.c", src)
		require.NoError(t, err)

		second, err := CompileSource(mode, "test.c", src)
		require.NoError(t, err)

		require.Equal(t,
			xxhash.Sum64String(first),
			xxhash.Sum64String(second),
			"mode %s output differs between runs", mode)
	}
}

func TestTrailingNewline(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{ModeKoopa, ModeRISCV} {
		out, err := CompileSource(mode, "test.c", "int main() { return 0; }")
		require.NoError(t, err)
		require.True(t, len(out) > 0 && out[len(out)-1] == '\n')
	}
}

func TestUnsupportedMode(t *testing.T) {
	t.Parallel()

	_, err := CompileSource(Mode("-x86"), "test.c", "int main() { return 0; }")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported mode")
}

func TestCompileFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "main.c")

	require.NoError(t, os.WriteFile(path, []byte("int main() { return 42; }\n"), 0o644))

	out, err := CompileFile(ModeKoopa, path)
	require.NoError(t, err)
	require.Contains(t, out, "\tret 42\n")

	out, err = CompileFile(ModeRISCV, path)
	require.NoError(t, err)
	require.Contains(t, out, "\tli a0, 42\n")

	_, err = CompileFile(ModeKoopa, filepath.Join(dir, "missing.c"))
	require.Error(t, err)
}
