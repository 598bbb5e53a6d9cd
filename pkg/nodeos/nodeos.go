// Package nodeos runs the node controller: a single worker that owns an
// executor and serializes host messages (application lifecycle, EPR
// socket setup, subroutine execution) with link-layer responses arriving
// from the network.
package nodeos

import (
	"fmt"

	"github.com/qnos-dev/qnos/pkg/instr"
)

// Message is a host instruction to the controller.
type Message interface {
	fmt.Stringer
	message()
}

// InitNewApp registers an application on the node.
type InitNewApp struct {
	AppID     int
	MaxQubits int
}

func (InitNewApp) message() {}
func (m InitNewApp) String() string {
	return fmt.Sprintf("init_new_app{app_id=%d max_qubits=%d}", m.AppID, m.MaxQubits)
}

// OpenEPRSocket opens an EPR socket toward a remote node.
type OpenEPRSocket struct {
	EPRSocketID       int32
	RemoteNodeID      int32
	RemoteEPRSocketID int32
}

func (OpenEPRSocket) message() {}
func (m OpenEPRSocket) String() string {
	return fmt.Sprintf("open_epr_socket{socket_id=%d remote_node_id=%d remote_socket_id=%d}",
		m.EPRSocketID, m.RemoteNodeID, m.RemoteEPRSocketID)
}

// RunSubroutine executes a subroutine on the node.
type RunSubroutine struct {
	Subroutine *instr.Subroutine
}

func (RunSubroutine) message() {}
func (m RunSubroutine) String() string {
	return fmt.Sprintf("subroutine{app_id=%d instructions=%d}",
		m.Subroutine.AppID, len(m.Subroutine.Instructions))
}

// StopApp stops an application, releasing its qubits and memory.
type StopApp struct {
	AppID int
}

func (StopApp) message() {}
func (m StopApp) String() string {
	return fmt.Sprintf("stop_app{app_id=%d}", m.AppID)
}

// envelope carries a message through the controller queue together with
// the channel its outcome is reported on.
type envelope struct {
	msg  Message
	done chan error
}
