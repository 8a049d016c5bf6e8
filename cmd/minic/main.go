package main

import (
	"fmt"
	"os"

	"github.com/corani/minic/internal/compiler"
)

func main() {
	args := os.Args[1:]
	if len(args) != 4 || args[2] != "-o" {
		fmt.Fprintln(os.Stderr, "usage: minic -koopa|-riscv <input> -o <output>")
		os.Exit(2)
	}

	mode := compiler.Mode(args[0])
	if mode != compiler.ModeKoopa && mode != compiler.ModeRISCV {
		fmt.Fprintf(os.Stderr, "minic: unknown mode %q\n", args[0])
		os.Exit(2)
	}

	out, err := compiler.CompileFile(mode, args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "minic: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(args[3], []byte(out), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "minic: %v\n", err)
		os.Exit(1)
	}
}
