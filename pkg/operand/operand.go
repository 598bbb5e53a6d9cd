// Package operand defines the value types that identify NetQASM registers,
// array addresses and array views.
//
// Operands are pure data: they carry no behavior beyond validation and
// string rendering. The executor resolves register-valued indices and
// slice bounds at access time.
package operand

import (
	"fmt"

	"github.com/pkg/errors"
)

// RegisterName identifies one of the four register banks.
type RegisterName uint8

const (
	BankR RegisterName = iota // general purpose
	BankC                     // constants / don't-care sentinels
	BankQ                     // virtual qubit addresses
	BankM                     // measurement outcomes
)

const (
	// NumBanks is the number of register banks per application.
	NumBanks = 4
	// BankSize is the number of registers per bank (4-bit index).
	BankSize = 16
)

// String returns the bank prefix ("R", "C", "Q" or "M").
func (n RegisterName) String() string {
	switch n {
	case BankR:
		return "R"
	case BankC:
		return "C"
	case BankQ:
		return "Q"
	case BankM:
		return "M"
	}
	return fmt.Sprintf("RegisterName(%d)", uint8(n))
}

// Operand is implemented by all operand shapes.
type Operand interface {
	fmt.Stringer
	operand()
}

// RegOrImm is an operand position that resolves to an integer either
// directly (Immediate) or by reading a register at access time.
type RegOrImm interface {
	Operand
	regOrImm()
}

// Register identifies a single register as (bank, index).
type Register struct {
	Name  RegisterName
	Index int
}

func (Register) operand() {}
func (Register) regOrImm() {}

// Validate checks that the bank and index are within range.
func (r Register) Validate() error {
	if r.Name > BankM {
		return errors.Errorf("invalid register bank %d", uint8(r.Name))
	}
	if r.Index < 0 || r.Index >= BankSize {
		return errors.Errorf("register index %d is not within 0 and %d", r.Index, BankSize)
	}
	return nil
}

func (r Register) String() string {
	return fmt.Sprintf("%s%d", r.Name, r.Index)
}

// Immediate is a literal 32-bit signed value.
type Immediate int32

func (Immediate) operand() {}
func (Immediate) regOrImm() {}

func (i Immediate) String() string {
	return fmt.Sprintf("%d", int32(i))
}

// Address identifies an array in per-application memory.
type Address uint32

func (Address) operand() {}

func (a Address) String() string {
	return fmt.Sprintf("@%d", uint32(a))
}

// ArrayEntry references a single array cell. The index is either an
// immediate or read from a register when the entry is accessed.
type ArrayEntry struct {
	Address Address
	Index   RegOrImm
}

func (ArrayEntry) operand() {}

func (e ArrayEntry) String() string {
	return fmt.Sprintf("%s[%s]", e.Address, e.Index)
}

// Validate checks the index operand.
func (e ArrayEntry) Validate() error {
	return validateRegOrImm(e.Index)
}

// ArraySlice references the half-open range [Start, Stop) of an array.
// Each bound is either an immediate or read from a register.
type ArraySlice struct {
	Address Address
	Start   RegOrImm
	Stop    RegOrImm
}

func (ArraySlice) operand() {}

func (s ArraySlice) String() string {
	return fmt.Sprintf("%s[%s:%s]", s.Address, s.Start, s.Stop)
}

// Validate checks both bound operands.
func (s ArraySlice) Validate() error {
	if err := validateRegOrImm(s.Start); err != nil {
		return err
	}
	return validateRegOrImm(s.Stop)
}

func validateRegOrImm(v RegOrImm) error {
	switch o := v.(type) {
	case Register:
		return o.Validate()
	case Immediate:
		return nil
	case nil:
		return errors.New("missing index operand")
	}
	return errors.Errorf("invalid index operand %v", v)
}
