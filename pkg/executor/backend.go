package executor

import "github.com/qnos-dev/qnos/pkg/instr"

// Backend is the quantum device layer underneath the interpreter. All
// hooks operate on physical qubit ids; the executor resolves virtual
// addresses before calling in. Hooks receive a Yielder so device
// implementations can suspend the run while hardware operations are in
// flight.
type Backend interface {
	SingleQubitGate(y Yielder, gate instr.Gate, physical int) error
	TwoQubitGate(y Yielder, gate instr.TwoQubitGate, physical0, physical1 int) error
	Rotation(y Yielder, axis instr.RotationAxis, physical int, angle float64) error
	ControlledRotation(y Yielder, axis instr.RotationAxis, physical0, physical1 int, angle float64) error
	// Measure measures the physical qubit and returns the outcome.
	Measure(y Yielder, physical int) (int32, error)
	// ReservePhysicalQubit claims a device qubit when it is bound to an
	// application, on local allocation or when an entangled pair half
	// arrives from the network.
	ReservePhysicalQubit(y Yielder, physical int) error
	// ClearPhysicalQubit resets a device qubit after release.
	ClearPhysicalQubit(y Yielder, physical int) error
}

// DebugBackend is a deviceless backend: gates are no-ops and every
// measurement yields outcome 0. Useful for exercising the classical
// interpreter without a simulator attached.
type DebugBackend struct{}

func (DebugBackend) SingleQubitGate(Yielder, instr.Gate, int) error { return nil }
func (DebugBackend) TwoQubitGate(Yielder, instr.TwoQubitGate, int, int) error { return nil }
func (DebugBackend) Rotation(Yielder, instr.RotationAxis, int, float64) error { return nil }
func (DebugBackend) ControlledRotation(Yielder, instr.RotationAxis, int, int, float64) error {
	return nil
}
func (DebugBackend) Measure(Yielder, int) (int32, error) { return 0, nil }
func (DebugBackend) ReservePhysicalQubit(Yielder, int) error { return nil }
func (DebugBackend) ClearPhysicalQubit(Yielder, int) error { return nil }
