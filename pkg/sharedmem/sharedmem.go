// Package sharedmem is the outbound half of application memory: the
// region a subroutine publishes results into and the host application
// reads back. The executor only ever writes; hosts only ever read.
package sharedmem

import (
	"sync"

	"github.com/qnos-dev/qnos/pkg/appmem"
	"github.com/qnos-dev/qnos/pkg/operand"
)

// Memory is the executor's write-side view of one application's shared
// region.
type Memory interface {
	// SetRegister publishes a register value.
	SetRegister(r operand.Register, v int32)
	// InitNewArray publishes a fresh array snapshot at addr.
	InitNewArray(addr operand.Address, cells []appmem.Cell)
	// SetArrayPart overwrites addr[start:start+len(cells)] of a
	// previously published array, extending it if needed.
	SetArrayPart(addr operand.Address, start int, cells []appmem.Cell)
}

// InMemory is the in-process shared region used when host and executor
// live in the same binary. Hosts may poll concurrently while a
// subroutine runs, so access is locked.
type InMemory struct {
	mu        sync.Mutex
	registers map[operand.Register]int32
	arrays    map[operand.Address][]appmem.Cell
}

// NewInMemory returns an empty shared region.
func NewInMemory() *InMemory {
	return &InMemory{
		registers: make(map[operand.Register]int32),
		arrays:    make(map[operand.Address][]appmem.Cell),
	}
}

func (m *InMemory) SetRegister(r operand.Register, v int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registers[r] = v
}

func (m *InMemory) InitNewArray(addr operand.Address, cells []appmem.Cell) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make([]appmem.Cell, len(cells))
	copy(snap, cells)
	m.arrays[addr] = snap
}

func (m *InMemory) SetArrayPart(addr operand.Address, start int, cells []appmem.Cell) {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.arrays[addr]
	if need := start + len(cells); need > len(arr) {
		grown := make([]appmem.Cell, need)
		copy(grown, arr)
		arr = grown
	}
	copy(arr[start:], cells)
	m.arrays[addr] = arr
}

// Registers returns a snapshot of all published register values.
func (m *InMemory) Registers() map[operand.Register]int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[operand.Register]int32, len(m.registers))
	for r, v := range m.registers {
		out[r] = v
	}
	return out
}

// Arrays returns a snapshot of all published arrays.
func (m *InMemory) Arrays() map[operand.Address][]appmem.Cell {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[operand.Address][]appmem.Cell, len(m.arrays))
	for a, arr := range m.arrays {
		snap := make([]appmem.Cell, len(arr))
		copy(snap, arr)
		out[a] = snap
	}
	return out
}

// Register reads back a published register value.
func (m *InMemory) Register(r operand.Register) (int32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.registers[r]
	return v, ok
}

// Array reads back a copy of a published array.
func (m *InMemory) Array(addr operand.Address) ([]appmem.Cell, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr, ok := m.arrays[addr]
	if !ok {
		return nil, false
	}
	out := make([]appmem.Cell, len(arr))
	copy(out, arr)
	return out, true
}
