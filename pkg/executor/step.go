package executor

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/qnos-dev/qnos/pkg/appmem"
	"github.com/qnos-dev/qnos/pkg/instr"
	"github.com/qnos-dev/qnos/pkg/operand"
)

// step executes one instruction. Branch instructions set the program
// counter themselves; every other instruction advances it by one on
// success. The returned outcome, if any, goes into the trace.
func (e *Executor) step(y Yielder, id int, mem *appmem.Memory, in instr.Instruction) (*int32, error) {
	switch c := in.(type) {
	case instr.Jmp:
		e.pcs[id] = int(c.Target)
		return nil, nil

	case instr.BranchUnary:
		a, err := e.getReg(mem, c.Reg)
		if err != nil {
			return nil, err
		}
		if c.Cond.Take(a) {
			e.pcs[id] = int(c.Target)
		} else {
			e.pcs[id]++
		}
		return nil, nil

	case instr.BranchBinary:
		a, err := e.getReg(mem, c.Reg0)
		if err != nil {
			return nil, err
		}
		b, err := e.getReg(mem, c.Reg1)
		if err != nil {
			return nil, err
		}
		if c.Cond.Take(a, b) {
			e.pcs[id] = int(c.Target)
		} else {
			e.pcs[id]++
		}
		return nil, nil
	}

	outcome, err := e.execute(y, id, mem, in)
	if err != nil {
		return nil, err
	}
	e.pcs[id]++
	return outcome, nil
}

func (e *Executor) execute(y Yielder, id int, mem *appmem.Memory, in instr.Instruction) (*int32, error) {
	switch c := in.(type) {
	case instr.Set:
		return nil, mem.Registers.Set(c.Reg, int32(c.Value))

	case instr.Store:
		v, err := e.getReg(mem, c.Reg)
		if err != nil {
			return nil, err
		}
		idx, err := e.entryIndex(mem, c.Entry)
		if err != nil {
			return nil, err
		}
		return nil, mem.Arrays.Set(c.Entry.Address, idx, appmem.Def(v))

	case instr.Load:
		idx, err := e.entryIndex(mem, c.Entry)
		if err != nil {
			return nil, err
		}
		cell, err := mem.Arrays.Get(c.Entry.Address, idx)
		if err != nil {
			return nil, err
		}
		if !cell.Defined {
			return nil, errors.Errorf("array entry %s is not defined", c.Entry)
		}
		return nil, mem.Registers.Set(c.Reg, cell.Value)

	case instr.Lea:
		return nil, mem.Registers.Set(c.Reg, int32(c.Address))

	case instr.Undef:
		idx, err := e.entryIndex(mem, c.Entry)
		if err != nil {
			return nil, err
		}
		return nil, mem.Arrays.Set(c.Entry.Address, idx, appmem.Cell{})

	case instr.NewArray:
		length, err := e.getReg(mem, c.Size)
		if err != nil {
			return nil, err
		}
		return nil, mem.Arrays.Init(c.Address, int(length))

	case instr.Arith:
		return nil, e.arith(mem, c)

	case instr.ArithMod:
		return nil, e.arithMod(mem, c)

	case instr.SingleQubit:
		phys, err := e.physFromReg(mem, c.Reg)
		if err != nil {
			return nil, err
		}
		return nil, e.backend.SingleQubitGate(y, c.Gate, phys)

	case instr.TwoQubit:
		phys0, err := e.physFromReg(mem, c.Reg0)
		if err != nil {
			return nil, err
		}
		phys1, err := e.physFromReg(mem, c.Reg1)
		if err != nil {
			return nil, err
		}
		return nil, e.backend.TwoQubitGate(y, c.Gate, phys0, phys1)

	case instr.Rotation:
		phys, err := e.physFromReg(mem, c.Reg)
		if err != nil {
			return nil, err
		}
		return nil, e.backend.Rotation(y, c.Axis, phys, rotationAngle(c.Num, c.Denom))

	case instr.ControlledRotation:
		phys0, err := e.physFromReg(mem, c.Reg0)
		if err != nil {
			return nil, err
		}
		phys1, err := e.physFromReg(mem, c.Reg1)
		if err != nil {
			return nil, err
		}
		return nil, e.backend.ControlledRotation(y, c.Axis, phys0, phys1, rotationAngle(c.Num, c.Denom))

	case instr.Meas:
		phys, err := e.physFromReg(mem, c.Qubit)
		if err != nil {
			return nil, err
		}
		outcome, err := e.backend.Measure(y, phys)
		if err != nil {
			return nil, err
		}
		if err := mem.Registers.Set(c.Out, outcome); err != nil {
			return nil, err
		}
		return &outcome, nil

	case instr.QAlloc:
		virt, err := e.getReg(mem, c.Reg)
		if err != nil {
			return nil, err
		}
		phys, err := mem.AllocQubit(int(virt))
		if err != nil {
			return nil, err
		}
		if err := e.backend.ReservePhysicalQubit(y, phys); err != nil {
			return nil, err
		}
		e.log.Debug("allocated qubit",
			zap.Int32("virtual", virt), zap.Int("physical", phys))
		out := int32(phys)
		return &out, nil

	case instr.QFree:
		virt, err := e.getReg(mem, c.Reg)
		if err != nil {
			return nil, err
		}
		phys, err := mem.FreeQubit(int(virt))
		if err != nil {
			return nil, err
		}
		return nil, e.backend.ClearPhysicalQubit(y, phys)

	case instr.CreateEPR:
		return nil, e.instrCreateEPR(id, mem, c)

	case instr.RecvEPR:
		return nil, e.instrRecvEPR(id, mem, c)

	case instr.WaitAll:
		return nil, e.waitSlice(y, mem, c.Slice, waitForAll)

	case instr.WaitAny:
		return nil, e.waitSlice(y, mem, c.Slice, waitForAny)

	case instr.WaitSingle:
		idx, err := e.entryIndex(mem, c.Entry)
		if err != nil {
			return nil, err
		}
		for {
			cell, err := mem.Arrays.Get(c.Entry.Address, idx)
			if err != nil {
				return nil, err
			}
			if cell.Defined {
				return nil, nil
			}
			y.Yield()
		}

	case instr.RetReg:
		v, err := e.getReg(mem, c.Reg)
		if err != nil {
			return nil, err
		}
		e.shared[e.subroutines[id].AppID].SetRegister(c.Reg, v)
		return nil, nil

	case instr.RetArr:
		cells, err := mem.Arrays.Values(c.Address)
		if err != nil {
			return nil, err
		}
		e.shared[e.subroutines[id].AppID].InitNewArray(c.Address, cells)
		return nil, nil
	}

	return nil, errors.Wrapf(ErrUnknownInstruction, "%T", in)
}

type waitMode int

const (
	waitForAll waitMode = iota
	waitForAny
)

func (e *Executor) waitSlice(y Yielder, mem *appmem.Memory, s operand.ArraySlice, mode waitMode) error {
	start, stop, err := e.sliceBounds(mem, s)
	if err != nil {
		return err
	}
	for {
		cells, err := mem.Arrays.Slice(s.Address, start, stop)
		if err != nil {
			return err
		}
		defined := 0
		for _, c := range cells {
			if c.Defined {
				defined++
			}
		}
		if mode == waitForAll && defined == len(cells) {
			return nil
		}
		if mode == waitForAny && defined > 0 {
			return nil
		}
		y.Yield()
	}
}

func (e *Executor) arith(mem *appmem.Memory, c instr.Arith) error {
	a, err := e.getReg(mem, c.A)
	if err != nil {
		return err
	}
	b, err := e.getReg(mem, c.B)
	if err != nil {
		return err
	}
	if c.Op == instr.OpAdd {
		return mem.Registers.Set(c.Out, a+b)
	}
	return mem.Registers.Set(c.Out, a-b)
}

func (e *Executor) arithMod(mem *appmem.Memory, c instr.ArithMod) error {
	mod, err := e.getReg(mem, c.Mod)
	if err != nil {
		return err
	}
	if mod < 1 {
		return errors.Errorf("modulus needs to be greater or equal to 1, not %d", mod)
	}
	a, err := e.getReg(mem, c.A)
	if err != nil {
		return err
	}
	b, err := e.getReg(mem, c.B)
	if err != nil {
		return err
	}
	if c.Op == instr.OpAdd {
		return mem.Registers.Set(c.Out, floorMod(a+b, mod))
	}
	return mem.Registers.Set(c.Out, floorMod(a-b, mod))
}

// floorMod gives the non-negative remainder for a positive modulus.
func floorMod(a, mod int32) int32 {
	r := a % mod
	if r < 0 {
		r += mod
	}
	return r
}

func rotationAngle(num, denom operand.Immediate) float64 {
	return math.Pi * float64(num) / math.Exp2(float64(denom))
}

// getReg reads a register that must hold a value.
func (e *Executor) getReg(mem *appmem.Memory, r operand.Register) (int32, error) {
	v, defined, err := mem.Registers.Get(r)
	if err != nil {
		return 0, err
	}
	if !defined {
		return 0, errors.Errorf("register %s is not defined", r)
	}
	return v, nil
}

func (e *Executor) physFromReg(mem *appmem.Memory, r operand.Register) (int, error) {
	virt, err := e.getReg(mem, r)
	if err != nil {
		return 0, err
	}
	return mem.PhysicalID(int(virt))
}

// regOrImmValue resolves an index operand to a concrete value.
func (e *Executor) regOrImmValue(mem *appmem.Memory, v operand.RegOrImm) (int32, error) {
	switch o := v.(type) {
	case operand.Immediate:
		return int32(o), nil
	case operand.Register:
		return e.getReg(mem, o)
	}
	return 0, errors.Errorf("invalid index operand %v", v)
}

func (e *Executor) entryIndex(mem *appmem.Memory, entry operand.ArrayEntry) (int, error) {
	idx, err := e.regOrImmValue(mem, entry.Index)
	if err != nil {
		return 0, err
	}
	return int(idx), nil
}

func (e *Executor) sliceBounds(mem *appmem.Memory, s operand.ArraySlice) (int, int, error) {
	start, err := e.regOrImmValue(mem, s.Start)
	if err != nil {
		return 0, 0, err
	}
	stop, err := e.regOrImmValue(mem, s.Stop)
	if err != nil {
		return 0, 0, err
	}
	return int(start), int(stop), nil
}
