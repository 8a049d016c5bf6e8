package lexer

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

type Location struct {
	Filename     string
	Line, Column int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line, l.Column)
}

// stderrTTY gates colored severity tags, so redirected output stays clean.
var stderrTTY = term.IsTerminal(int(os.Stderr.Fd()))

func severity(tag, color string) string {
	if !stderrTTY {
		return "[" + tag + "]"
	}

	return "\x1b[" + color + "m[" + tag + "]\x1b[0m"
}

// Errorf prints a located diagnostic to stderr and returns the same message
// as an error for the caller to propagate.
func (l Location) Errorf(format string, args ...any) error {
	fmt.Fprintf(os.Stderr, "%s: %s "+format+"\n",
		append([]any{l.String(), severity("ERRO", "31")}, args...)...)

	return fmt.Errorf("%s: "+format, append([]any{l.String()}, args...)...)
}
