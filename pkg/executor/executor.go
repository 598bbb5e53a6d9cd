// Package executor implements the NetQASM interpreter of a node: it
// owns per-application memories, executes subroutines as resumable
// runs, and coordinates entanglement generation with the network stack.
package executor

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/qnos-dev/qnos/pkg/appmem"
	"github.com/qnos-dev/qnos/pkg/instr"
	"github.com/qnos-dev/qnos/pkg/instrlog"
	"github.com/qnos-dev/qnos/pkg/qlink"
	"github.com/qnos-dev/qnos/pkg/sharedmem"
)

// Lifecycle errors.
var (
	ErrAppExists          = errors.New("application already registered")
	ErrNoApplication      = errors.New("application not registered")
	ErrNoNetworkStack     = errors.New("no network stack attached")
	ErrUnknownInstruction = errors.New("unknown instruction")
)

// Executor interprets NetQASM subroutines for one node.
//
// The executor is single-threaded by design: it runs on the thread of
// control of whoever drives it (a node controller loop, or a test).
// Suspension via Run keeps blocking instructions cooperative instead of
// concurrent.
type Executor struct {
	name   string
	nodeID int32

	log      *zap.Logger
	backend  Backend
	netstack qlink.NetworkStack
	trace    *instrlog.Logger
	clock    func() int64

	pool   *appmem.Pool
	mem    map[int]*appmem.Memory
	shared map[int]sharedmem.Memory

	subroutines      map[int]*instr.Subroutine
	pcs              map[int]int
	nextSubroutineID int

	createRequests map[requestKey][]*eprRequest
	recvRequests   map[requestKey][]*eprRequest
	pending        []qlink.Response

	// ResponseBackoff runs after a full pass over pending responses
	// matched nothing, before control returns to the caller. Tests and
	// simulators hook it to pace retries.
	ResponseBackoff func()
}

// New returns an executor for the named node with numQubits physical
// qubits. It starts with a deviceless backend, no network stack and a
// no-op logger; attach real ones with the setters.
func New(name string, nodeID int32, numQubits int) *Executor {
	return &Executor{
		name:           name,
		nodeID:         nodeID,
		log:            zap.NewNop(),
		backend:        DebugBackend{},
		pool:           appmem.NewPool(numQubits),
		mem:            make(map[int]*appmem.Memory),
		shared:         make(map[int]sharedmem.Memory),
		subroutines:    make(map[int]*instr.Subroutine),
		pcs:            make(map[int]int),
		createRequests: make(map[requestKey][]*eprRequest),
		recvRequests:   make(map[requestKey][]*eprRequest),
	}
}

// Name returns the node name.
func (e *Executor) Name() string { return e.name }

// NodeID returns the node id used in link-layer requests.
func (e *Executor) NodeID() int32 { return e.nodeID }

// SetLogger attaches a structured logger.
func (e *Executor) SetLogger(log *zap.Logger) {
	e.log = log.Named("executor").With(zap.String("node", e.name))
}

// SetBackend attaches the quantum device layer.
func (e *Executor) SetBackend(b Backend) { e.backend = b }

// SetNetworkStack attaches the link layer.
func (e *Executor) SetNetworkStack(ns qlink.NetworkStack) { e.netstack = ns }

// SetTrace attaches an instruction trace logger.
func (e *Executor) SetTrace(t *instrlog.Logger) { e.trace = t }

// SetClock attaches a simulation-time source for trace entries.
func (e *Executor) SetClock(clock func() int64) { e.clock = clock }

// InitNewApplication registers an application with a virtual qubit
// address space of maxQubits.
func (e *Executor) InitNewApplication(appID int, maxQubits int) error {
	if _, ok := e.mem[appID]; ok {
		return errors.Wrapf(ErrAppExists, "app %d", appID)
	}
	e.mem[appID] = appmem.New(maxQubits, e.pool)
	e.shared[appID] = sharedmem.NewInMemory()
	e.log.Debug("registered application",
		zap.Int("app_id", appID), zap.Int("max_qubits", maxQubits))
	return nil
}

// HasApplication reports whether appID is registered.
func (e *Executor) HasApplication(appID int) bool {
	_, ok := e.mem[appID]
	return ok
}

// Memory returns the application's memory, or nil if not registered.
func (e *Executor) Memory(appID int) *appmem.Memory { return e.mem[appID] }

// SharedMemory returns the application's shared region, or nil.
func (e *Executor) SharedMemory(appID int) sharedmem.Memory { return e.shared[appID] }

// SetupEPRSocket opens an EPR socket by forwarding to the network
// stack. Without a stack attached this is a no-op, matching nodes that
// run purely classical programs.
func (e *Executor) SetupEPRSocket(localSocketID, remoteNodeID, remoteSocketID int32) error {
	if e.netstack == nil {
		return nil
	}
	return e.netstack.SetupEPRSocket(localSocketID, remoteNodeID, remoteSocketID)
}

// StopApplication tears an application down: every held qubit is
// released and cleared in the backend, then classical and shared memory
// are dropped. The returned Run suspends at backend clear hooks.
func (e *Executor) StopApplication(appID int) *Run {
	return newRun(func(y Yielder) error {
		mem, ok := e.mem[appID]
		if !ok {
			return errors.Wrapf(ErrNoApplication, "app %d", appID)
		}
		for _, phys := range mem.ReleaseAll() {
			if err := e.backend.ClearPhysicalQubit(y, phys); err != nil {
				return err
			}
		}
		delete(e.mem, appID)
		delete(e.shared, appID)
		e.log.Debug("stopped application", zap.Int("app_id", appID))
		return nil
	})
}

// ExecuteSubroutine starts interpreting a subroutine as a resumable
// run. The subroutine id is fresh for every execution and never reused.
func (e *Executor) ExecuteSubroutine(sub *instr.Subroutine) *Run {
	return newRun(func(y Yielder) error {
		return e.runSubroutine(y, sub)
	})
}

// ConsumeSubroutine executes a subroutine to completion.
func (e *Executor) ConsumeSubroutine(sub *instr.Subroutine) error {
	return e.ExecuteSubroutine(sub).Consume()
}

func (e *Executor) newSubroutineID() int {
	id := e.nextSubroutineID
	e.nextSubroutineID++
	return id
}

func (e *Executor) runSubroutine(y Yielder, sub *instr.Subroutine) error {
	mem, ok := e.mem[sub.AppID]
	if !ok {
		return errors.Wrapf(ErrNoApplication, "app %d", sub.AppID)
	}
	id := e.newSubroutineID()
	e.subroutines[id] = sub
	e.pcs[id] = 0
	defer func() {
		delete(e.subroutines, id)
		delete(e.pcs, id)
	}()

	e.log.Debug("executing subroutine",
		zap.Int("subroutine_id", id),
		zap.Int("app_id", sub.AppID),
		zap.Int("instructions", len(sub.Instructions)))

	for e.pcs[id] < len(sub.Instructions) {
		pc := e.pcs[id]
		in := sub.Instructions[pc]
		outcome, err := e.step(y, id, mem, in)
		if err != nil {
			return errors.Wrapf(err, "at line %d", pc)
		}
		e.record(id, sub.AppID, pc, in, outcome)
	}
	return nil
}

func (e *Executor) record(subroutineID, appID, pc int, in instr.Instruction, outcome *int32) {
	if e.trace == nil {
		return
	}
	var simTime int64
	if e.clock != nil {
		simTime = e.clock()
	}
	full := in.String()
	operands := ""
	if len(full) > len(in.Mnemonic()) {
		operands = full[len(in.Mnemonic())+1:]
	}
	e.trace.Record(instrlog.Entry{
		WallTime:       time.Now(),
		SimTime:        simTime,
		AppID:          appID,
		SubroutineID:   subroutineID,
		ProgramCounter: pc,
		Instruction:    in.Mnemonic(),
		Operands:       operands,
		Outcome:        outcome,
	})
}
