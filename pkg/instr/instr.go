// Package instr defines the NetQASM instruction set as a closed set of
// variants, plus the Subroutine container the executor consumes.
//
// Each variant carries only the operands relevant to it and is immutable
// once constructed. The compiler collaborator guarantees that branch
// targets are absolute instruction indices and that immediates are typed;
// the executor does no label resolution.
package instr

import (
	"fmt"

	"github.com/qnos-dev/qnos/pkg/operand"
)

// Instruction is implemented by every instruction variant. The executor
// dispatches on the concrete type; Mnemonic and String exist for logging
// and tracing.
type Instruction interface {
	Mnemonic() string
	fmt.Stringer
}

// Subroutine is one compiled unit of NetQASM instructions bound to an
// application. It is owned exclusively by the executor for the duration
// of one execution.
type Subroutine struct {
	AppID        int
	Instructions []Instruction
}

// ===== Pure classical =====

// Set writes an immediate into a register.
type Set struct {
	Reg   operand.Register
	Value operand.Immediate
}

func (Set) Mnemonic() string { return "set" }
func (i Set) String() string { return fmt.Sprintf("set %s %s", i.Reg, i.Value) }

// Store writes a register value into an array entry.
type Store struct {
	Reg   operand.Register
	Entry operand.ArrayEntry
}

func (Store) Mnemonic() string { return "store" }
func (i Store) String() string { return fmt.Sprintf("store %s %s", i.Reg, i.Entry) }

// Load reads an array entry into a register.
type Load struct {
	Reg   operand.Register
	Entry operand.ArrayEntry
}

func (Load) Mnemonic() string { return "load" }
func (i Load) String() string { return fmt.Sprintf("load %s %s", i.Reg, i.Entry) }

// Lea writes an array address into a register.
type Lea struct {
	Reg     operand.Register
	Address operand.Address
}

func (Lea) Mnemonic() string { return "lea" }
func (i Lea) String() string { return fmt.Sprintf("lea %s %s", i.Reg, i.Address) }

// Undef marks an array entry as undefined again.
type Undef struct {
	Entry operand.ArrayEntry
}

func (Undef) Mnemonic() string { return "undef" }
func (i Undef) String() string { return fmt.Sprintf("undef %s", i.Entry) }

// NewArray allocates an array; the length is read from the Size register.
type NewArray struct {
	Address operand.Address
	Size    operand.Register
}

func (NewArray) Mnemonic() string { return "array" }
func (i NewArray) String() string { return fmt.Sprintf("array %s %s", i.Size, i.Address) }

// ===== Control flow =====

// Jmp unconditionally sets the program counter to Target.
type Jmp struct {
	Target operand.Immediate
}

func (Jmp) Mnemonic() string { return "jmp" }
func (i Jmp) String() string { return fmt.Sprintf("jmp %s", i.Target) }

// UnaryCond is the predicate of a unary branch.
type UnaryCond uint8

const (
	CondZero    UnaryCond = iota // bez: a == 0
	CondNonZero                  // bnz: a != 0
)

// Take reports whether the branch is taken for register value a.
func (c UnaryCond) Take(a int32) bool {
	if c == CondZero {
		return a == 0
	}
	return a != 0
}

func (c UnaryCond) String() string {
	if c == CondZero {
		return "bez"
	}
	return "bnz"
}

// BranchUnary tests one register against zero and branches to Target.
type BranchUnary struct {
	Cond   UnaryCond
	Reg    operand.Register
	Target operand.Immediate
}

func (i BranchUnary) Mnemonic() string { return i.Cond.String() }
func (i BranchUnary) String() string {
	return fmt.Sprintf("%s %s %s", i.Cond, i.Reg, i.Target)
}

// BinaryCond is the predicate of a binary branch.
type BinaryCond uint8

const (
	CondEqual BinaryCond = iota // beq
	CondNotEqual                // bne
	CondLessThan                // blt
	CondGreaterEqual            // bge
)

// Take reports whether the branch is taken for register values a and b.
func (c BinaryCond) Take(a, b int32) bool {
	switch c {
	case CondEqual:
		return a == b
	case CondNotEqual:
		return a != b
	case CondLessThan:
		return a < b
	case CondGreaterEqual:
		return a >= b
	}
	return false
}

func (c BinaryCond) String() string {
	switch c {
	case CondEqual:
		return "beq"
	case CondNotEqual:
		return "bne"
	case CondLessThan:
		return "blt"
	case CondGreaterEqual:
		return "bge"
	}
	return fmt.Sprintf("BinaryCond(%d)", uint8(c))
}

// BranchBinary compares two registers and branches to Target.
type BranchBinary struct {
	Cond   BinaryCond
	Reg0   operand.Register
	Reg1   operand.Register
	Target operand.Immediate
}

func (i BranchBinary) Mnemonic() string { return i.Cond.String() }
func (i BranchBinary) String() string {
	return fmt.Sprintf("%s %s %s %s", i.Cond, i.Reg0, i.Reg1, i.Target)
}

// ===== Classical arithmetic =====

// ArithOp selects the arithmetic operation of Arith and ArithMod.
type ArithOp uint8

const (
	OpAdd ArithOp = iota
	OpSub
)

func (o ArithOp) String() string {
	if o == OpAdd {
		return "add"
	}
	return "sub"
}

// Arith computes Out = A op B.
type Arith struct {
	Op  ArithOp
	Out operand.Register
	A   operand.Register
	B   operand.Register
}

func (i Arith) Mnemonic() string { return i.Op.String() }
func (i Arith) String() string {
	return fmt.Sprintf("%s %s %s %s", i.Op, i.Out, i.A, i.B)
}

// ArithMod computes Out = (A op B) mod Mod; the modulus is read from a
// register and must be at least 1.
type ArithMod struct {
	Op  ArithOp
	Out operand.Register
	A   operand.Register
	B   operand.Register
	Mod operand.Register
}

func (i ArithMod) Mnemonic() string { return i.Op.String() + "m" }
func (i ArithMod) String() string {
	return fmt.Sprintf("%sm %s %s %s %s", i.Op, i.Out, i.A, i.B, i.Mod)
}

// ===== Qubit lifecycle =====

// QAlloc allocates the virtual qubit address held in Reg.
type QAlloc struct {
	Reg operand.Register
}

func (QAlloc) Mnemonic() string { return "qalloc" }
func (i QAlloc) String() string { return fmt.Sprintf("qalloc %s", i.Reg) }

// QFree frees the virtual qubit address held in Reg.
type QFree struct {
	Reg operand.Register
}

func (QFree) Mnemonic() string { return "qfree" }
func (i QFree) String() string { return fmt.Sprintf("qfree %s", i.Reg) }

// ===== Gates, rotations, measurement =====

// Gate is a single-qubit gate selector.
type Gate uint8

const (
	GateInit Gate = iota
	GateX
	GateY
	GateZ
	GateH
	GateS
	GateK
	GateT
)

func (g Gate) String() string {
	switch g {
	case GateInit:
		return "init"
	case GateX:
		return "x"
	case GateY:
		return "y"
	case GateZ:
		return "z"
	case GateH:
		return "h"
	case GateS:
		return "s"
	case GateK:
		return "k"
	case GateT:
		return "t"
	}
	return fmt.Sprintf("Gate(%d)", uint8(g))
}

// SingleQubit applies a single-qubit gate to the virtual qubit address
// held in Reg.
type SingleQubit struct {
	Gate Gate
	Reg  operand.Register
}

func (i SingleQubit) Mnemonic() string { return i.Gate.String() }
func (i SingleQubit) String() string { return fmt.Sprintf("%s %s", i.Gate, i.Reg) }

// TwoQubitGate is a two-qubit gate selector.
type TwoQubitGate uint8

const (
	GateCNOT TwoQubitGate = iota
	GateCPhase
)

func (g TwoQubitGate) String() string {
	if g == GateCNOT {
		return "cnot"
	}
	return "cphase"
}

// TwoQubit applies a two-qubit gate to the virtual qubit addresses held
// in Reg0 (control) and Reg1 (target).
type TwoQubit struct {
	Gate TwoQubitGate
	Reg0 operand.Register
	Reg1 operand.Register
}

func (i TwoQubit) Mnemonic() string { return i.Gate.String() }
func (i TwoQubit) String() string {
	return fmt.Sprintf("%s %s %s", i.Gate, i.Reg0, i.Reg1)
}

// RotationAxis selects the rotation axis.
type RotationAxis uint8

const (
	AxisX RotationAxis = iota
	AxisY
	AxisZ
)

func (a RotationAxis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("RotationAxis(%d)", uint8(a))
}

// Rotation rotates a single qubit by Num*pi/2^Denom around Axis.
type Rotation struct {
	Axis  RotationAxis
	Reg   operand.Register
	Num   operand.Immediate
	Denom operand.Immediate
}

func (i Rotation) Mnemonic() string { return "rot_" + i.Axis.String() }
func (i Rotation) String() string {
	return fmt.Sprintf("%s %s %s %s", i.Mnemonic(), i.Reg, i.Num, i.Denom)
}

// ControlledRotation rotates the target qubit conditioned on the control
// qubit, by Num*pi/2^Denom around Axis.
type ControlledRotation struct {
	Axis  RotationAxis
	Reg0  operand.Register
	Reg1  operand.Register
	Num   operand.Immediate
	Denom operand.Immediate
}

func (i ControlledRotation) Mnemonic() string { return "crot_" + i.Axis.String() }
func (i ControlledRotation) String() string {
	return fmt.Sprintf("%s %s %s %s %s", i.Mnemonic(), i.Reg0, i.Reg1, i.Num, i.Denom)
}

// Meas measures the qubit whose virtual address is held in Qubit and
// writes the outcome into Out.
type Meas struct {
	Qubit operand.Register
	Out   operand.Register
}

func (Meas) Mnemonic() string { return "meas" }
func (i Meas) String() string { return fmt.Sprintf("meas %s %s", i.Qubit, i.Out) }

// ===== Entanglement generation =====

// CreateEPR requests entanglement generation with a remote node. All five
// operands are registers holding, in order: the remote node id, the local
// EPR socket id, the address of the array of destination virtual qubit
// addresses (may be left undefined for measure-directly requests), the
// address of the request-argument array, and the address of the result
// array.
type CreateEPR struct {
	RemoteNodeID   operand.Register
	EPRSocketID    operand.Register
	QubitAddrArray operand.Register
	ArgArray       operand.Register
	ResultArray    operand.Register
}

func (CreateEPR) Mnemonic() string { return "create_epr" }
func (i CreateEPR) String() string {
	return fmt.Sprintf("create_epr %s %s %s %s %s",
		i.RemoteNodeID, i.EPRSocketID, i.QubitAddrArray, i.ArgArray, i.ResultArray)
}

// RecvEPR accepts entanglement generation initiated by a remote node.
type RecvEPR struct {
	RemoteNodeID   operand.Register
	EPRSocketID    operand.Register
	QubitAddrArray operand.Register
	ResultArray    operand.Register
}

func (RecvEPR) Mnemonic() string { return "recv_epr" }
func (i RecvEPR) String() string {
	return fmt.Sprintf("recv_epr %s %s %s %s",
		i.RemoteNodeID, i.EPRSocketID, i.QubitAddrArray, i.ResultArray)
}

// ===== Synchronization =====

// WaitAll blocks until every entry in the slice is defined.
type WaitAll struct {
	Slice operand.ArraySlice
}

func (WaitAll) Mnemonic() string { return "wait_all" }
func (i WaitAll) String() string { return fmt.Sprintf("wait_all %s", i.Slice) }

// WaitAny blocks until at least one entry in the slice is defined.
type WaitAny struct {
	Slice operand.ArraySlice
}

func (WaitAny) Mnemonic() string { return "wait_any" }
func (i WaitAny) String() string { return fmt.Sprintf("wait_any %s", i.Slice) }

// WaitSingle blocks until the entry is defined.
type WaitSingle struct {
	Entry operand.ArrayEntry
}

func (WaitSingle) Mnemonic() string { return "wait_single" }
func (i WaitSingle) String() string { return fmt.Sprintf("wait_single %s", i.Entry) }

// ===== Return =====

// RetReg copies a register value into shared memory.
type RetReg struct {
	Reg operand.Register
}

func (RetReg) Mnemonic() string { return "ret_reg" }
func (i RetReg) String() string { return fmt.Sprintf("ret_reg %s", i.Reg) }

// RetArr copies an entire array into shared memory.
type RetArr struct {
	Address operand.Address
}

func (RetArr) Mnemonic() string { return "ret_arr" }
func (i RetArr) String() string { return fmt.Sprintf("ret_arr %s", i.Address) }
