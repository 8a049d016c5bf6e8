package codegen

import (
	"fmt"

	"github.com/corani/minic/internal/kir"
)

// scratchRegs is the allocation order for short-lived values within a single
// instruction: the temporaries first, then the argument registers.
var scratchRegs = []string{
	"t0", "t1", "t2", "t3", "t4", "t5", "t6",
	"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7",
}

// StackPlan assigns every value-producing KIR instruction of one function a
// 4-byte slot, bumping upward from the space reserved for outgoing stack
// arguments. The slot at frameSize-4 holds the saved return address.
type StackPlan struct {
	frameSize int
	used      int
	offsets   map[*kir.Value]int
}

func newStackPlan(frameSize, outgoingArgs int) *StackPlan {
	return &StackPlan{
		frameSize: frameSize,
		used:      outgoingArgs * 4,
		offsets:   make(map[*kir.Value]int),
	}
}

func (p *StackPlan) FrameSize() int {
	return p.frameSize
}

// Ensure assigns a slot on first use; later calls for the same value are
// no-ops.
func (p *StackPlan) Ensure(v *kir.Value) error {
	if _, ok := p.offsets[v]; ok {
		return nil
	}

	if p.used+4 > p.frameSize-4 {
		return fmt.Errorf("stack plan overflow: frame of %d bytes exhausted", p.frameSize)
	}

	p.offsets[v] = p.used
	p.used += 4

	return nil
}

func (p *StackPlan) OffsetOf(v *kir.Value) (int, error) {
	off, ok := p.offsets[v]
	if !ok {
		return 0, fmt.Errorf("value (%s) has no stack slot in this frame", v.Kind)
	}

	return off, nil
}

// Context carries the backend lowering state: per-function stack plans, the
// scratch-register pool, and the renaming of globals to external names.
type Context struct {
	plans      map[string]*StackPlan
	plan       *StackPlan
	regOf      map[*kir.Value]string
	regUsed    map[string]bool
	globals    map[*kir.Value]string
	nextGlobal int
}

func NewContext() *Context {
	return &Context{
		plans:   make(map[string]*StackPlan),
		regOf:   make(map[*kir.Value]string),
		regUsed: make(map[string]bool),
		globals: make(map[*kir.Value]string),
	}
}

func (c *Context) EnterFunction(name string, frameSize, outgoingArgs int) error {
	if _, exists := c.plans[name]; exists {
		return fmt.Errorf("duplicate stack plan for function %s", name)
	}

	c.plan = newStackPlan(frameSize, outgoingArgs)
	c.plans[name] = c.plan

	return nil
}

// Plan returns the stack plan of the function currently lowering.
func (c *Context) Plan() *StackPlan {
	return c.plan
}

// AllocateReg claims a scratch register for the value; RegOf looks it up.
// A zero immediate maps to the hardware zero register and leaves the pool
// untouched. Allocating a value twice is a hard error, as is an empty pool.
func (c *Context) AllocateReg(v *kir.Value, isZero bool) error {
	if reg, exists := c.regOf[v]; exists {
		return fmt.Errorf("value (%s) is already in register %s", v.Kind, reg)
	}

	if isZero {
		c.regOf[v] = "x0"

		return nil
	}

	for _, reg := range scratchRegs {
		if !c.regUsed[reg] {
			c.regUsed[reg] = true
			c.regOf[v] = reg

			return nil
		}
	}

	return fmt.Errorf("scratch register pool exhausted")
}

func (c *Context) RegOf(v *kir.Value) (string, error) {
	reg, ok := c.regOf[v]
	if !ok {
		return "", fmt.Errorf("value (%s) holds no register", v.Kind)
	}

	return reg, nil
}

func (c *Context) FreeReg(v *kir.Value) error {
	reg, ok := c.regOf[v]
	if !ok {
		return fmt.Errorf("freeing a value (%s) that holds no register", v.Kind)
	}

	if reg != "x0" {
		c.regUsed[reg] = false
	}

	delete(c.regOf, v)

	return nil
}

// NewTempReg returns a currently free register without claiming it, for the
// synthesized sequences that expand out-of-range offsets.
func (c *Context) NewTempReg() (string, error) {
	for _, reg := range scratchRegs {
		if !c.regUsed[reg] {
			return reg, nil
		}
	}

	return "", fmt.Errorf("scratch register pool exhausted")
}

// DefineGlobal assigns the next external name to a global allocation.
func (c *Context) DefineGlobal(v *kir.Value) string {
	name := fmt.Sprintf("global_var_%d", c.nextGlobal)
	c.nextGlobal++
	c.globals[v] = name

	return name
}

func (c *Context) GlobalName(v *kir.Value) (string, error) {
	name, ok := c.globals[v]
	if !ok {
		return "", fmt.Errorf("reference to unknown global")
	}

	return name, nil
}
