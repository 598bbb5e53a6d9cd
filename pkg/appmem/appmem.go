// Package appmem implements the per-application classical and quantum
// memory of a node: register banks, dynamically allocated arrays, and the
// virtual-to-physical qubit mapping backed by a node-wide physical pool.
//
// All classical values are 32-bit signed integers. Registers and array
// entries distinguish "defined" from "undefined"; reading an undefined
// location is reported to the caller rather than being an error, since
// several instructions give undefined inputs a meaning (request defaults,
// wait conditions).
package appmem

import (
	"github.com/pkg/errors"

	"github.com/qnos-dev/qnos/pkg/operand"
)

// Sentinel errors for memory access failures.
var (
	ErrBounds           = errors.New("index out of bounds")
	ErrNoArray          = errors.New("array does not exist")
	ErrArrayExists      = errors.New("array already initialized")
	ErrAlreadyAllocated = errors.New("qubit already allocated")
	ErrNotAllocated     = errors.New("qubit not allocated")
	ErrPoolExhausted    = errors.New("no free physical qubits")
)

// Cell is one classical storage location: a value plus a defined flag.
// The zero Cell is undefined.
type Cell struct {
	Value   int32
	Defined bool
}

// Def builds a defined cell holding v.
func Def(v int32) Cell { return Cell{Value: v, Defined: true} }

// RegisterFile holds the four register banks of one application.
type RegisterFile struct {
	values  [operand.NumBanks][operand.BankSize]int32
	defined [operand.NumBanks][operand.BankSize]bool
}

// Get returns the register value and whether it has been written.
func (f *RegisterFile) Get(r operand.Register) (int32, bool, error) {
	if err := r.Validate(); err != nil {
		return 0, false, err
	}
	return f.values[r.Name][r.Index], f.defined[r.Name][r.Index], nil
}

// Set writes the register and marks it defined.
func (f *RegisterFile) Set(r operand.Register, v int32) error {
	if err := r.Validate(); err != nil {
		return err
	}
	f.values[r.Name][r.Index] = v
	f.defined[r.Name][r.Index] = true
	return nil
}

// Arrays holds the dynamically allocated arrays of one application,
// keyed by address.
type Arrays struct {
	arrays map[operand.Address][]Cell
}

// NewArrays returns an empty array store.
func NewArrays() *Arrays {
	return &Arrays{arrays: make(map[operand.Address][]Cell)}
}

// Init allocates a new array of length entries, all undefined. Reusing
// an address that is still allocated is an error.
func (a *Arrays) Init(addr operand.Address, length int) error {
	if length < 0 {
		return errors.Wrapf(ErrBounds, "array %s length %d", addr, length)
	}
	if _, ok := a.arrays[addr]; ok {
		return errors.Wrapf(ErrArrayExists, "array %s", addr)
	}
	a.arrays[addr] = make([]Cell, length)
	return nil
}

// Has reports whether an array is allocated at addr.
func (a *Arrays) Has(addr operand.Address) bool {
	_, ok := a.arrays[addr]
	return ok
}

// Len returns the length of the array at addr.
func (a *Arrays) Len(addr operand.Address) (int, error) {
	arr, ok := a.arrays[addr]
	if !ok {
		return 0, errors.Wrapf(ErrNoArray, "array %s", addr)
	}
	return len(arr), nil
}

// Get returns the cell at addr[index].
func (a *Arrays) Get(addr operand.Address, index int) (Cell, error) {
	arr, ok := a.arrays[addr]
	if !ok {
		return Cell{}, errors.Wrapf(ErrNoArray, "array %s", addr)
	}
	if index < 0 || index >= len(arr) {
		return Cell{}, errors.Wrapf(ErrBounds, "array %s index %d len %d", addr, index, len(arr))
	}
	return arr[index], nil
}

// Set writes the cell at addr[index].
func (a *Arrays) Set(addr operand.Address, index int, c Cell) error {
	arr, ok := a.arrays[addr]
	if !ok {
		return errors.Wrapf(ErrNoArray, "array %s", addr)
	}
	if index < 0 || index >= len(arr) {
		return errors.Wrapf(ErrBounds, "array %s index %d len %d", addr, index, len(arr))
	}
	arr[index] = c
	return nil
}

// Slice returns a copy of addr[start:stop].
func (a *Arrays) Slice(addr operand.Address, start, stop int) ([]Cell, error) {
	arr, ok := a.arrays[addr]
	if !ok {
		return nil, errors.Wrapf(ErrNoArray, "array %s", addr)
	}
	if start < 0 || stop > len(arr) || start > stop {
		return nil, errors.Wrapf(ErrBounds, "array %s slice [%d:%d] len %d", addr, start, stop, len(arr))
	}
	out := make([]Cell, stop-start)
	copy(out, arr[start:stop])
	return out, nil
}

// SetSlice overwrites addr[start:start+len(cells)].
func (a *Arrays) SetSlice(addr operand.Address, start int, cells []Cell) error {
	arr, ok := a.arrays[addr]
	if !ok {
		return errors.Wrapf(ErrNoArray, "array %s", addr)
	}
	if start < 0 || start+len(cells) > len(arr) {
		return errors.Wrapf(ErrBounds, "array %s slice [%d:%d] len %d", addr, start, start+len(cells), len(arr))
	}
	copy(arr[start:], cells)
	return nil
}

// Values returns a copy of the full array at addr.
func (a *Arrays) Values(addr operand.Address) ([]Cell, error) {
	arr, ok := a.arrays[addr]
	if !ok {
		return nil, errors.Wrapf(ErrNoArray, "array %s", addr)
	}
	out := make([]Cell, len(arr))
	copy(out, arr)
	return out, nil
}
