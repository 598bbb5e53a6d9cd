package appmem

import (
	"github.com/pkg/errors"
)

// Pool tracks which physical qubits of the node are in use. One Pool is
// shared by every application's Memory; a physical id is held by at most
// one application at a time.
type Pool struct {
	size int
	used map[int]bool
}

// NewPool returns a pool of size physical qubits, ids 0..size-1.
func NewPool(size int) *Pool {
	return &Pool{size: size, used: make(map[int]bool)}
}

// Size returns the number of physical qubits in the pool.
func (p *Pool) Size() int { return p.size }

// Acquire claims the lowest free physical id.
func (p *Pool) Acquire() (int, error) {
	for id := 0; id < p.size; id++ {
		if !p.used[id] {
			p.used[id] = true
			return id, nil
		}
	}
	return 0, errors.Wrapf(ErrPoolExhausted, "pool size %d", p.size)
}

// AcquireAt claims a specific physical id.
func (p *Pool) AcquireAt(id int) error {
	if id < 0 || id >= p.size {
		return errors.Wrapf(ErrBounds, "physical qubit %d pool size %d", id, p.size)
	}
	if p.used[id] {
		return errors.Wrapf(ErrAlreadyAllocated, "physical qubit %d", id)
	}
	p.used[id] = true
	return nil
}

// Release returns a physical id to the pool.
func (p *Pool) Release(id int) {
	delete(p.used, id)
}

// InUse reports whether the physical id is currently claimed.
func (p *Pool) InUse(id int) bool { return p.used[id] }

// Memory is the complete memory of one application: register banks,
// arrays, and the virtual qubit address space mapped onto the node pool.
type Memory struct {
	Registers RegisterFile
	Arrays    *Arrays

	pool     *Pool
	physical []int  // virtual address -> physical id
	active   []bool // virtual address allocated
}

// New returns an application memory with numQubits virtual qubit
// addresses drawing physical qubits from pool.
func New(numQubits int, pool *Pool) *Memory {
	return &Memory{
		Arrays:   NewArrays(),
		pool:     pool,
		physical: make([]int, numQubits),
		active:   make([]bool, numQubits),
	}
}

// NumQubits returns the size of the virtual qubit address space.
func (m *Memory) NumQubits() int { return len(m.active) }

// HasVirtual reports whether the virtual address is currently allocated.
func (m *Memory) HasVirtual(virtual int) bool {
	return virtual >= 0 && virtual < len(m.active) && m.active[virtual]
}

// AllocQubit binds the virtual address to the lowest free physical qubit
// and returns the physical id.
func (m *Memory) AllocQubit(virtual int) (int, error) {
	if virtual < 0 || virtual >= len(m.active) {
		return 0, errors.Wrapf(ErrBounds, "virtual qubit %d of %d", virtual, len(m.active))
	}
	if m.active[virtual] {
		return 0, errors.Wrapf(ErrAlreadyAllocated, "virtual qubit %d", virtual)
	}
	phys, err := m.pool.Acquire()
	if err != nil {
		return 0, err
	}
	m.physical[virtual] = phys
	m.active[virtual] = true
	return phys, nil
}

// AllocQubitAt binds the virtual address to a specific physical qubit,
// used when entanglement generation hands the application a qubit that
// already exists in hardware.
func (m *Memory) AllocQubitAt(virtual, physical int) error {
	if virtual < 0 || virtual >= len(m.active) {
		return errors.Wrapf(ErrBounds, "virtual qubit %d of %d", virtual, len(m.active))
	}
	if m.active[virtual] {
		return errors.Wrapf(ErrAlreadyAllocated, "virtual qubit %d", virtual)
	}
	if err := m.pool.AcquireAt(physical); err != nil {
		return err
	}
	m.physical[virtual] = physical
	m.active[virtual] = true
	return nil
}

// FreeQubit releases the virtual address and returns the physical id it
// was bound to.
func (m *Memory) FreeQubit(virtual int) (int, error) {
	if virtual < 0 || virtual >= len(m.active) {
		return 0, errors.Wrapf(ErrBounds, "virtual qubit %d of %d", virtual, len(m.active))
	}
	if !m.active[virtual] {
		return 0, errors.Wrapf(ErrNotAllocated, "virtual qubit %d", virtual)
	}
	phys := m.physical[virtual]
	m.active[virtual] = false
	m.pool.Release(phys)
	return phys, nil
}

// PhysicalID resolves a virtual address to its physical qubit id.
func (m *Memory) PhysicalID(virtual int) (int, error) {
	if !m.HasVirtual(virtual) {
		return 0, errors.Wrapf(ErrNotAllocated, "virtual qubit %d", virtual)
	}
	return m.physical[virtual], nil
}

// ReleaseAll frees every allocated virtual address and returns the
// physical ids that were released, used when an application stops.
func (m *Memory) ReleaseAll() []int {
	var released []int
	for v := 0; v < len(m.active); v++ {
		if m.active[v] {
			released = append(released, m.physical[v])
			m.pool.Release(m.physical[v])
			m.active[v] = false
		}
	}
	return released
}
