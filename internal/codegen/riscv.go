package codegen

import (
	"fmt"
	"strings"
)

// printer renders RISC-V assembly lines into a buffer. Loads, stores and
// stack adjustments go through the helpers that expand offsets outside the
// 12-bit immediate range.
type printer struct {
	out strings.Builder
	ctx *Context
}

func newPrinter(ctx *Context) *printer {
	return &printer{ctx: ctx}
}

func (p *printer) String() string {
	return p.out.String()
}

func (p *printer) writef(format string, args ...any) {
	fmt.Fprintf(&p.out, format, args...)
}

func (p *printer) Text() { p.out.WriteString("\n\t.text\n") }
func (p *printer) Data() { p.out.WriteString("\n\t.data\n") }

func (p *printer) Globl(name string) { p.writef("\t.globl %s\n", name) }
func (p *printer) Label(name string) { p.writef("%s:\n", name) }
func (p *printer) Word(value int)    { p.writef("\t.word %d\n", value) }
func (p *printer) Zero(size int)     { p.writef("\t.zero %d\n", size) }

func (p *printer) Li(rd string, imm int) { p.writef("\tli %s, %d\n", rd, imm) }
func (p *printer) Mv(rd, rs string)      { p.writef("\tmv %s, %s\n", rd, rs) }
func (p *printer) La(rd, symbol string)  { p.writef("\tla %s, %s\n", rd, symbol) }

func (p *printer) Seqz(rd, rs string) { p.writef("\tseqz %s, %s\n", rd, rs) }
func (p *printer) Snez(rd, rs string) { p.writef("\tsnez %s, %s\n", rd, rs) }

func (p *printer) op3(name, rd, rs1, rs2 string) {
	p.writef("\t%s %s, %s, %s\n", name, rd, rs1, rs2)
}

func (p *printer) Add(rd, rs1, rs2 string) { p.op3("add", rd, rs1, rs2) }
func (p *printer) Sub(rd, rs1, rs2 string) { p.op3("sub", rd, rs1, rs2) }
func (p *printer) Mul(rd, rs1, rs2 string) { p.op3("mul", rd, rs1, rs2) }
func (p *printer) Div(rd, rs1, rs2 string) { p.op3("div", rd, rs1, rs2) }
func (p *printer) Rem(rd, rs1, rs2 string) { p.op3("rem", rd, rs1, rs2) }
func (p *printer) And(rd, rs1, rs2 string) { p.op3("and", rd, rs1, rs2) }
func (p *printer) Or(rd, rs1, rs2 string)  { p.op3("or", rd, rs1, rs2) }
func (p *printer) Xor(rd, rs1, rs2 string) { p.op3("xor", rd, rs1, rs2) }
func (p *printer) Slt(rd, rs1, rs2 string) { p.op3("slt", rd, rs1, rs2) }
func (p *printer) Sgt(rd, rs1, rs2 string) { p.op3("sgt", rd, rs1, rs2) }

func (p *printer) Bnez(cond, label string) { p.writef("\tbnez %s, %s\n", cond, label) }
func (p *printer) Jump(label string)       { p.writef("\tj %s\n", label) }
func (p *printer) Call(name string)        { p.writef("\tcall %s\n", name) }
func (p *printer) Ret()                    { p.out.WriteString("\tret\n") }

// fitsImm12 reports whether the value fits an I-type immediate.
func fitsImm12(imm int) bool {
	return imm >= -2048 && imm < 2048
}

// Addi adjusts rd by an arbitrary immediate, synthesizing li+add when the
// immediate does not fit.
func (p *printer) Addi(rd, rs string, imm int) error {
	if fitsImm12(imm) {
		p.writef("\taddi %s, %s, %d\n", rd, rs, imm)

		return nil
	}

	reg, err := p.ctx.NewTempReg()
	if err != nil {
		return err
	}

	p.Li(reg, imm)
	p.Add(rd, rs, reg)

	return nil
}

func (p *printer) Lw(rd, base string, offset int) error {
	if fitsImm12(offset) {
		p.writef("\tlw %s, %d(%s)\n", rd, offset, base)

		return nil
	}

	reg, err := p.ctx.NewTempReg()
	if err != nil {
		return err
	}

	p.Li(reg, offset)
	p.Add(reg, reg, base)
	p.writef("\tlw %s, 0(%s)\n", rd, reg)

	return nil
}

func (p *printer) Sw(rs, base string, offset int) error {
	if fitsImm12(offset) {
		p.writef("\tsw %s, %d(%s)\n", rs, offset, base)

		return nil
	}

	reg, err := p.ctx.NewTempReg()
	if err != nil {
		return err
	}

	p.Li(reg, offset)
	p.Add(reg, reg, base)
	p.writef("\tsw %s, 0(%s)\n", rs, reg)

	return nil
}
