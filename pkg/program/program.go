// Package program parses the debug program format: a YAML file holding
// an app id and one text-form instruction per line. This is a
// development format for driving a node by hand, not the binary wire
// encoding of subroutines.
package program

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/qnos-dev/qnos/pkg/instr"
	"github.com/qnos-dev/qnos/pkg/operand"
)

// File is the on-disk YAML form of a subroutine.
type File struct {
	AppID        int      `yaml:"app_id"`
	Instructions []string `yaml:"instructions"`
}

// Load reads a YAML program file into a subroutine.
func Load(path string) (*instr.Subroutine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf File
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, errors.Wrap(err, "parsing program")
	}
	sub := &instr.Subroutine{AppID: pf.AppID}
	for i, line := range pf.Instructions {
		in, err := ParseInstruction(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i)
		}
		sub.Instructions = append(sub.Instructions, in)
	}
	return sub, nil
}

var singleQubitGates = map[string]instr.Gate{
	"init": instr.GateInit,
	"x":    instr.GateX,
	"y":    instr.GateY,
	"z":    instr.GateZ,
	"h":    instr.GateH,
	"s":    instr.GateS,
	"k":    instr.GateK,
	"t":    instr.GateT,
}

var rotationAxes = map[string]instr.RotationAxis{
	"rot_x": instr.AxisX, "crot_x": instr.AxisX,
	"rot_y": instr.AxisY, "crot_y": instr.AxisY,
	"rot_z": instr.AxisZ, "crot_z": instr.AxisZ,
}

var unaryConds = map[string]instr.UnaryCond{
	"bez": instr.CondZero,
	"bnz": instr.CondNonZero,
}

var binaryConds = map[string]instr.BinaryCond{
	"beq": instr.CondEqual,
	"bne": instr.CondNotEqual,
	"blt": instr.CondLessThan,
	"bge": instr.CondGreaterEqual,
}

// ParseInstruction parses one text-form instruction such as
// "set R0 5", "store R0 @1[R1]" or "beq R0 R1 12".
func ParseInstruction(line string) (instr.Instruction, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("empty instruction")
	}
	mnemonic, args := fields[0], fields[1:]

	need := func(n int) error {
		if len(args) != n {
			return errors.Errorf("%s takes %d operands, got %d", mnemonic, n, len(args))
		}
		return nil
	}

	switch mnemonic {
	case "set":
		if err := need(2); err != nil {
			return nil, err
		}
		reg, err := operand.ParseRegister(args[0])
		if err != nil {
			return nil, err
		}
		imm, err := parseImm(args[1])
		if err != nil {
			return nil, err
		}
		return instr.Set{Reg: reg, Value: imm}, nil

	case "store", "load":
		if err := need(2); err != nil {
			return nil, err
		}
		reg, err := operand.ParseRegister(args[0])
		if err != nil {
			return nil, err
		}
		entry, err := parseEntry(args[1])
		if err != nil {
			return nil, err
		}
		if mnemonic == "store" {
			return instr.Store{Reg: reg, Entry: entry}, nil
		}
		return instr.Load{Reg: reg, Entry: entry}, nil

	case "lea":
		if err := need(2); err != nil {
			return nil, err
		}
		reg, err := operand.ParseRegister(args[0])
		if err != nil {
			return nil, err
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return nil, err
		}
		return instr.Lea{Reg: reg, Address: addr}, nil

	case "undef":
		if err := need(1); err != nil {
			return nil, err
		}
		entry, err := parseEntry(args[0])
		if err != nil {
			return nil, err
		}
		return instr.Undef{Entry: entry}, nil

	case "array":
		if err := need(2); err != nil {
			return nil, err
		}
		size, err := operand.ParseRegister(args[0])
		if err != nil {
			return nil, err
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return nil, err
		}
		return instr.NewArray{Address: addr, Size: size}, nil

	case "jmp":
		if err := need(1); err != nil {
			return nil, err
		}
		target, err := parseImm(args[0])
		if err != nil {
			return nil, err
		}
		return instr.Jmp{Target: target}, nil

	case "bez", "bnz":
		if err := need(2); err != nil {
			return nil, err
		}
		reg, err := operand.ParseRegister(args[0])
		if err != nil {
			return nil, err
		}
		target, err := parseImm(args[1])
		if err != nil {
			return nil, err
		}
		return instr.BranchUnary{Cond: unaryConds[mnemonic], Reg: reg, Target: target}, nil

	case "beq", "bne", "blt", "bge":
		if err := need(3); err != nil {
			return nil, err
		}
		reg0, err := operand.ParseRegister(args[0])
		if err != nil {
			return nil, err
		}
		reg1, err := operand.ParseRegister(args[1])
		if err != nil {
			return nil, err
		}
		target, err := parseImm(args[2])
		if err != nil {
			return nil, err
		}
		return instr.BranchBinary{Cond: binaryConds[mnemonic], Reg0: reg0, Reg1: reg1, Target: target}, nil

	case "add", "sub":
		regs, err := parseRegs(args, 3, mnemonic)
		if err != nil {
			return nil, err
		}
		op := instr.OpAdd
		if mnemonic == "sub" {
			op = instr.OpSub
		}
		return instr.Arith{Op: op, Out: regs[0], A: regs[1], B: regs[2]}, nil

	case "addm", "subm":
		regs, err := parseRegs(args, 4, mnemonic)
		if err != nil {
			return nil, err
		}
		op := instr.OpAdd
		if mnemonic == "subm" {
			op = instr.OpSub
		}
		return instr.ArithMod{Op: op, Out: regs[0], A: regs[1], B: regs[2], Mod: regs[3]}, nil

	case "init", "x", "y", "z", "h", "s", "k", "t":
		regs, err := parseRegs(args, 1, mnemonic)
		if err != nil {
			return nil, err
		}
		return instr.SingleQubit{Gate: singleQubitGates[mnemonic], Reg: regs[0]}, nil

	case "cnot", "cphase":
		regs, err := parseRegs(args, 2, mnemonic)
		if err != nil {
			return nil, err
		}
		gate := instr.GateCNOT
		if mnemonic == "cphase" {
			gate = instr.GateCPhase
		}
		return instr.TwoQubit{Gate: gate, Reg0: regs[0], Reg1: regs[1]}, nil

	case "rot_x", "rot_y", "rot_z":
		if err := need(3); err != nil {
			return nil, err
		}
		reg, err := operand.ParseRegister(args[0])
		if err != nil {
			return nil, err
		}
		num, err := parseImm(args[1])
		if err != nil {
			return nil, err
		}
		denom, err := parseImm(args[2])
		if err != nil {
			return nil, err
		}
		return instr.Rotation{Axis: rotationAxes[mnemonic], Reg: reg, Num: num, Denom: denom}, nil

	case "crot_x", "crot_y", "crot_z":
		if err := need(4); err != nil {
			return nil, err
		}
		reg0, err := operand.ParseRegister(args[0])
		if err != nil {
			return nil, err
		}
		reg1, err := operand.ParseRegister(args[1])
		if err != nil {
			return nil, err
		}
		num, err := parseImm(args[2])
		if err != nil {
			return nil, err
		}
		denom, err := parseImm(args[3])
		if err != nil {
			return nil, err
		}
		return instr.ControlledRotation{
			Axis: rotationAxes[mnemonic], Reg0: reg0, Reg1: reg1, Num: num, Denom: denom,
		}, nil

	case "meas":
		regs, err := parseRegs(args, 2, mnemonic)
		if err != nil {
			return nil, err
		}
		return instr.Meas{Qubit: regs[0], Out: regs[1]}, nil

	case "qalloc", "qfree":
		regs, err := parseRegs(args, 1, mnemonic)
		if err != nil {
			return nil, err
		}
		if mnemonic == "qalloc" {
			return instr.QAlloc{Reg: regs[0]}, nil
		}
		return instr.QFree{Reg: regs[0]}, nil

	case "create_epr":
		regs, err := parseRegs(args, 5, mnemonic)
		if err != nil {
			return nil, err
		}
		return instr.CreateEPR{
			RemoteNodeID:   regs[0],
			EPRSocketID:    regs[1],
			QubitAddrArray: regs[2],
			ArgArray:       regs[3],
			ResultArray:    regs[4],
		}, nil

	case "recv_epr":
		regs, err := parseRegs(args, 4, mnemonic)
		if err != nil {
			return nil, err
		}
		return instr.RecvEPR{
			RemoteNodeID:   regs[0],
			EPRSocketID:    regs[1],
			QubitAddrArray: regs[2],
			ResultArray:    regs[3],
		}, nil

	case "wait_all", "wait_any":
		if err := need(1); err != nil {
			return nil, err
		}
		slice, err := parseSlice(args[0])
		if err != nil {
			return nil, err
		}
		if mnemonic == "wait_all" {
			return instr.WaitAll{Slice: slice}, nil
		}
		return instr.WaitAny{Slice: slice}, nil

	case "wait_single":
		if err := need(1); err != nil {
			return nil, err
		}
		entry, err := parseEntry(args[0])
		if err != nil {
			return nil, err
		}
		return instr.WaitSingle{Entry: entry}, nil

	case "ret_reg":
		regs, err := parseRegs(args, 1, mnemonic)
		if err != nil {
			return nil, err
		}
		return instr.RetReg{Reg: regs[0]}, nil

	case "ret_arr":
		if err := need(1); err != nil {
			return nil, err
		}
		addr, err := parseAddr(args[0])
		if err != nil {
			return nil, err
		}
		return instr.RetArr{Address: addr}, nil
	}

	return nil, errors.Errorf("unknown mnemonic %q", mnemonic)
}

func parseImm(s string) (operand.Immediate, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.Errorf("invalid immediate %q", s)
	}
	return operand.Immediate(v), nil
}

func parseRegs(args []string, n int, mnemonic string) ([]operand.Register, error) {
	if len(args) != n {
		return nil, errors.Errorf("%s takes %d operands, got %d", mnemonic, n, len(args))
	}
	regs := make([]operand.Register, n)
	for i, a := range args {
		r, err := operand.ParseRegister(a)
		if err != nil {
			return nil, err
		}
		regs[i] = r
	}
	return regs, nil
}

func parseAddr(s string) (operand.Address, error) {
	op, err := operand.ParseAddress(s)
	if err != nil {
		return 0, err
	}
	addr, ok := op.(operand.Address)
	if !ok {
		return 0, errors.Errorf("expected plain address, got %s", op)
	}
	return addr, nil
}

func parseEntry(s string) (operand.ArrayEntry, error) {
	op, err := operand.ParseAddress(s)
	if err != nil {
		return operand.ArrayEntry{}, err
	}
	entry, ok := op.(operand.ArrayEntry)
	if !ok {
		return operand.ArrayEntry{}, errors.Errorf("expected array entry, got %s", op)
	}
	return entry, nil
}

func parseSlice(s string) (operand.ArraySlice, error) {
	op, err := operand.ParseAddress(s)
	if err != nil {
		return operand.ArraySlice{}, err
	}
	slice, ok := op.(operand.ArraySlice)
	if !ok {
		return operand.ArraySlice{}, errors.Errorf("expected array slice, got %s", op)
	}
	return slice, nil
}
