package executor

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnos-dev/qnos/internal/testutil"
	"github.com/qnos-dev/qnos/pkg/appmem"
	"github.com/qnos-dev/qnos/pkg/instr"
	"github.com/qnos-dev/qnos/pkg/operand"
	"github.com/qnos-dev/qnos/pkg/qlink"
)

// stackMock is a network stack that records submitted requests and
// resolves every socket to a fixed purpose id scheme.
type stackMock struct {
	puts    []qlink.CreateRequest
	sockets [][3]int32
}

func (s *stackMock) Put(req qlink.CreateRequest) error {
	s.puts = append(s.puts, req)
	return nil
}

func (s *stackMock) SetupEPRSocket(localSocketID, remoteNodeID, remoteSocketID int32) error {
	s.sockets = append(s.sockets, [3]int32{localSocketID, remoteNodeID, remoteSocketID})
	return nil
}

func (s *stackMock) GetPurposeID(remoteNodeID, localSocketID int32) (int32, error) {
	return remoteNodeID*10 + localSocketID, nil
}

func newEPRExecutor(t *testing.T) (*Executor, *stackMock) {
	t.Helper()
	e := New("alice", 0, 4)
	stack := &stackMock{}
	e.SetNetworkStack(stack)
	require.NoError(t, e.InitNewApplication(0, 4))
	return e, stack
}

// initEPRArrays prepares the arrays an entanglement program uses: the
// qubit address array (skipped when qubitAddrs is nil), an argument
// array of protocol width and a result array sized for pairs.
func initEPRArrays(t *testing.T, e *Executor, qubitArr operand.Address, qubitAddrs []int32, argArr, resultArr operand.Address, pairs int) {
	t.Helper()
	arrays := e.Memory(0).Arrays
	if qubitAddrs != nil {
		require.NoError(t, arrays.Init(qubitArr, len(qubitAddrs)))
		require.NoError(t, arrays.SetSlice(qubitArr, 0, testutil.Cells(qubitAddrs...)))
	}
	require.NoError(t, arrays.Init(argArr, qlink.CreateRequestFields))
	require.NoError(t, arrays.Init(resultArr, pairs*qlink.ResultFieldsKeep))
}

// setArg defines one request argument in the argument array.
func setArg(t *testing.T, e *Executor, argArr operand.Address, index int, value int32) {
	t.Helper()
	require.NoError(t, e.Memory(0).Arrays.Set(argArr, index, appmem.Def(value)))
}

// createSub builds a create_epr subroutine. The qubit address array
// register stays undefined when qubitArr is nil, as measure-directly
// requests leave it out.
func createSub(t *testing.T, remote int32, qubitArr *operand.Address, argArr, resultArr operand.Address) *instr.Subroutine {
	t.Helper()
	r0 := testutil.Reg(t, "R0")
	r1 := testutil.Reg(t, "R1")
	r2 := testutil.Reg(t, "R2")
	r3 := testutil.Reg(t, "R3")
	r4 := testutil.Reg(t, "R4")

	ins := []instr.Instruction{
		instr.Set{Reg: r0, Value: operand.Immediate(remote)},
		instr.Set{Reg: r1, Value: 0},
		instr.Set{Reg: r3, Value: operand.Immediate(argArr)},
		instr.Set{Reg: r4, Value: operand.Immediate(resultArr)},
	}
	if qubitArr != nil {
		ins = append(ins, instr.Set{Reg: r2, Value: operand.Immediate(*qubitArr)})
	}
	ins = append(ins, instr.CreateEPR{
		RemoteNodeID:   r0,
		EPRSocketID:    r1,
		QubitAddrArray: r2,
		ArgArray:       r3,
		ResultArray:    r4,
	})
	return &instr.Subroutine{AppID: 0, Instructions: ins}
}

// recvSub builds a recv_epr subroutine.
func recvSub(t *testing.T, remote int32, qubitArr *operand.Address, resultArr operand.Address) *instr.Subroutine {
	t.Helper()
	r0 := testutil.Reg(t, "R0")
	r1 := testutil.Reg(t, "R1")
	r2 := testutil.Reg(t, "R2")
	r4 := testutil.Reg(t, "R4")

	ins := []instr.Instruction{
		instr.Set{Reg: r0, Value: operand.Immediate(remote)},
		instr.Set{Reg: r1, Value: 0},
		instr.Set{Reg: r4, Value: operand.Immediate(resultArr)},
	}
	if qubitArr != nil {
		ins = append(ins, instr.Set{Reg: r2, Value: operand.Immediate(*qubitArr)})
	}
	ins = append(ins, instr.RecvEPR{
		RemoteNodeID:   r0,
		EPRSocketID:    r1,
		QubitAddrArray: r2,
		ResultArray:    r4,
	})
	return &instr.Subroutine{AppID: 0, Instructions: ins}
}

func addr(a uint32) *operand.Address {
	v := operand.Address(a)
	return &v
}

// ===== Request submission =====

func TestCreateEPRSubmitsRequest(t *testing.T) {
	e, stack := newEPRExecutor(t)
	initEPRArrays(t, e, 1, []int32{0}, 2, 3, 1)

	require.NoError(t, e.ConsumeSubroutine(createSub(t, 1, addr(1), 2, 3)))

	require.Len(t, stack.puts, 1)
	req := stack.puts[0]
	assert.Equal(t, int32(1), req.RemoteNodeID)
	assert.Equal(t, int32(10), req.PurposeID) // remote*10 + socket
	assert.Equal(t, qlink.KindCreateKeep, req.Kind)
	assert.Equal(t, int32(1), req.Number)
}

func TestCreateEPRQubitArrayTooShort(t *testing.T) {
	e, _ := newEPRExecutor(t)
	initEPRArrays(t, e, 1, []int32{0}, 2, 3, 2)
	setArg(t, e, 2, 1, 2) // two pairs, one qubit address

	err := e.ConsumeSubroutine(createSub(t, 1, addr(1), 2, 3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qubit address array")
}

func TestCreateEPRWithoutNetworkStack(t *testing.T) {
	e := New("alice", 0, 4)
	require.NoError(t, e.InitNewApplication(0, 4))
	initEPRArrays(t, e, 1, []int32{0}, 2, 3, 1)

	err := e.ConsumeSubroutine(createSub(t, 1, addr(1), 2, 3))
	assert.True(t, errors.Is(err, ErrNoNetworkStack))
}

func TestRecvEPRDoesNotSubmit(t *testing.T) {
	e, stack := newEPRExecutor(t)
	initEPRArrays(t, e, 1, []int32{0, 1}, 2, 3, 2)

	require.NoError(t, e.ConsumeSubroutine(recvSub(t, 1, addr(1), 3)))
	assert.Empty(t, stack.puts)
}

// ===== Create/keep matching =====

func okK(remote, purpose, physical int32) qlink.OKCreateKeep {
	return qlink.OKCreateKeep{
		LogicalQubitID:     physical,
		DirectionalityFlag: 0,
		PurposeID:          purpose,
		RemoteNodeID:       remote,
		BellState:          qlink.PhiPlus,
	}
}

func TestCreateKeepResponseBindsQubit(t *testing.T) {
	e, _ := newEPRExecutor(t)
	initEPRArrays(t, e, 1, []int32{0}, 2, 3, 1)
	require.NoError(t, e.ConsumeSubroutine(createSub(t, 1, addr(1), 2, 3)))

	require.NoError(t, e.HandleEPRResponse(okK(1, 10, 2)))

	mem := e.Memory(0)
	assert.True(t, mem.HasVirtual(0))
	phys, err := mem.PhysicalID(0)
	require.NoError(t, err)
	assert.Equal(t, 2, phys)

	// result fields land in the first pair slot
	cells, err := mem.Arrays.Slice(3, 0, qlink.ResultFieldsKeep)
	require.NoError(t, err)
	for _, c := range cells {
		assert.True(t, c.Defined)
	}
	assert.Equal(t, int32(qlink.ReturnOKCreateKeep), cells[0].Value)
	assert.Equal(t, int32(2), cells[2].Value) // logical qubit id
	assert.Equal(t, 0, e.PendingEPRResponses())
}

func TestCreateRequestsServedFIFO(t *testing.T) {
	e, _ := newEPRExecutor(t)
	arrays := e.Memory(0).Arrays

	// first request: qubit address 0, results at @3
	initEPRArrays(t, e, 1, []int32{0}, 2, 3, 1)
	require.NoError(t, e.ConsumeSubroutine(createSub(t, 1, addr(1), 2, 3)))

	// second request, same remote and socket: qubit address 1, results at @6
	require.NoError(t, arrays.Init(5, 1))
	require.NoError(t, arrays.SetSlice(5, 0, testutil.Cells(1)))
	require.NoError(t, arrays.Init(4, qlink.CreateRequestFields))
	require.NoError(t, arrays.Init(6, qlink.ResultFieldsKeep))
	require.NoError(t, e.ConsumeSubroutine(createSub(t, 1, addr(5), 4, 6)))

	require.NoError(t, e.HandleEPRResponse(okK(1, 10, 2)))
	require.NoError(t, e.HandleEPRResponse(okK(1, 10, 3)))

	mem := e.Memory(0)
	// head-of-line request got the first response
	phys, err := mem.PhysicalID(0)
	require.NoError(t, err)
	assert.Equal(t, 2, phys)
	phys, err = mem.PhysicalID(1)
	require.NoError(t, err)
	assert.Equal(t, 3, phys)

	first, err := mem.Arrays.Get(3, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), first.Value)
	second, err := mem.Arrays.Get(6, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(3), second.Value)
}

func TestMultiPairResultOffsets(t *testing.T) {
	e, _ := newEPRExecutor(t)
	initEPRArrays(t, e, 1, []int32{0, 1}, 2, 3, 2)
	setArg(t, e, 2, 1, 2) // two pairs

	require.NoError(t, e.ConsumeSubroutine(createSub(t, 1, addr(1), 2, 3)))

	require.NoError(t, e.HandleEPRResponse(okK(1, 10, 2)))
	require.NoError(t, e.HandleEPRResponse(okK(1, 10, 3)))

	mem := e.Memory(0)
	pair0, err := mem.Arrays.Get(3, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), pair0.Value)
	pair1, err := mem.Arrays.Get(3, qlink.ResultFieldsKeep+2)
	require.NoError(t, err)
	assert.Equal(t, int32(3), pair1.Value)
}

// ===== Deferral and retry =====

func TestResponseDeferredWhileAddressOccupied(t *testing.T) {
	e, _ := newEPRExecutor(t)
	initEPRArrays(t, e, 1, []int32{0}, 2, 3, 1)

	// occupy virtual address 0 before the response arrives
	q0 := testutil.Reg(t, "Q0")
	require.NoError(t, e.ConsumeSubroutine(&instr.Subroutine{AppID: 0, Instructions: []instr.Instruction{
		instr.Set{Reg: q0, Value: 0},
		instr.QAlloc{Reg: q0},
	}}))
	require.NoError(t, e.ConsumeSubroutine(createSub(t, 1, addr(1), 2, 3)))

	backoffs := 0
	e.ResponseBackoff = func() { backoffs++ }

	require.NoError(t, e.HandleEPRResponse(okK(1, 10, 2)))
	assert.Equal(t, 1, e.PendingEPRResponses())
	assert.Equal(t, 1, backoffs)

	// freeing the address makes the buffered response matchable
	_, err := e.Memory(0).FreeQubit(0)
	require.NoError(t, err)
	require.NoError(t, e.ProcessPendingEPRResponses())
	assert.Equal(t, 0, e.PendingEPRResponses())
	phys, err := e.Memory(0).PhysicalID(0)
	require.NoError(t, err)
	assert.Equal(t, 2, phys)
}

func TestDeferredResponseDoesNotBlockOtherKeys(t *testing.T) {
	e, _ := newEPRExecutor(t)
	arrays := e.Memory(0).Arrays

	// request toward node 1 whose target address is occupied
	initEPRArrays(t, e, 1, []int32{0}, 2, 3, 1)
	q0 := testutil.Reg(t, "Q0")
	require.NoError(t, e.ConsumeSubroutine(&instr.Subroutine{AppID: 0, Instructions: []instr.Instruction{
		instr.Set{Reg: q0, Value: 0},
		instr.QAlloc{Reg: q0},
	}}))
	require.NoError(t, e.ConsumeSubroutine(createSub(t, 1, addr(1), 2, 3)))

	// request toward node 2
	require.NoError(t, arrays.Init(5, 1))
	require.NoError(t, arrays.SetSlice(5, 0, testutil.Cells(1)))
	require.NoError(t, arrays.Init(4, qlink.CreateRequestFields))
	require.NoError(t, arrays.Init(6, qlink.ResultFieldsKeep))
	require.NoError(t, e.ConsumeSubroutine(createSub(t, 2, addr(5), 4, 6)))

	// the blocked response arrives first, then the matchable one
	require.NoError(t, e.HandleEPRResponse(okK(1, 10, 2)))
	require.NoError(t, e.HandleEPRResponse(okK(2, 20, 3)))

	// node 2's pair bound despite node 1's response being stuck
	assert.Equal(t, 1, e.PendingEPRResponses())
	phys, err := e.Memory(0).PhysicalID(1)
	require.NoError(t, err)
	assert.Equal(t, 3, phys)
}

func TestResponseBufferedWithoutRequest(t *testing.T) {
	e, _ := newEPRExecutor(t)
	require.NoError(t, e.HandleEPRResponse(okK(1, 10, 2)))
	assert.Equal(t, 1, e.PendingEPRResponses())

	// the request arrives later; retry drains the buffer
	initEPRArrays(t, e, 1, []int32{0}, 2, 3, 1)
	require.NoError(t, e.ConsumeSubroutine(createSub(t, 1, addr(1), 2, 3)))
	require.NoError(t, e.ProcessPendingEPRResponses())
	assert.Equal(t, 0, e.PendingEPRResponses())
	assert.True(t, e.Memory(0).HasVirtual(0))
}

// ===== Measure directly =====

func TestMeasureDirectly(t *testing.T) {
	e, stack := newEPRExecutor(t)
	initEPRArrays(t, e, 1, nil, 2, 3, 1)
	setArg(t, e, 2, 0, int32(qlink.KindMeasureDirectly))

	require.NoError(t, e.ConsumeSubroutine(createSub(t, 1, nil, 2, 3)))
	require.Len(t, stack.puts, 1)
	assert.Equal(t, qlink.KindMeasureDirectly, stack.puts[0].Kind)

	resp := qlink.OKMeasureDirectly{
		MeasurementOutcome: 1,
		MeasurementBasis:   2,
		PurposeID:          10,
		RemoteNodeID:       1,
	}
	require.NoError(t, e.HandleEPRResponse(resp))

	mem := e.Memory(0)
	outcome, err := mem.Arrays.Get(3, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(1), outcome.Value)
	// no qubit was bound
	assert.False(t, mem.HasVirtual(0))
}

// ===== Receive side =====

func TestRecvEPRPairCountAndBinding(t *testing.T) {
	e, _ := newEPRExecutor(t)
	initEPRArrays(t, e, 1, []int32{0, 1}, 2, 3, 2)

	require.NoError(t, e.ConsumeSubroutine(recvSub(t, 1, addr(1), 3)))

	// responses carry directionality 1: the remote node created them
	resp := okK(1, 10, 2)
	resp.DirectionalityFlag = 1
	require.NoError(t, e.HandleEPRResponse(resp))
	resp = okK(1, 10, 3)
	resp.DirectionalityFlag = 1
	require.NoError(t, e.HandleEPRResponse(resp))

	mem := e.Memory(0)
	phys, err := mem.PhysicalID(0)
	require.NoError(t, err)
	assert.Equal(t, 2, phys)
	phys, err = mem.PhysicalID(1)
	require.NoError(t, err)
	assert.Equal(t, 3, phys)
}

// ===== Failure modes =====

func TestErrorResponseIsFatal(t *testing.T) {
	e, _ := newEPRExecutor(t)
	err := e.HandleEPRResponse(qlink.Err{Code: qlink.ErrCodeTimeout, CreateID: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network stack returned error")
}

func TestRemotePrepNotImplemented(t *testing.T) {
	e, _ := newEPRExecutor(t)
	initEPRArrays(t, e, 1, []int32{0}, 2, 3, 1)
	setArg(t, e, 2, 0, int32(qlink.KindRemotePrep))
	require.NoError(t, e.ConsumeSubroutine(createSub(t, 1, addr(1), 2, 3)))

	resp := qlink.OKRemotePrep{PurposeID: 10, RemoteNodeID: 1}
	err := e.HandleEPRResponse(resp)
	assert.True(t, errors.Is(err, qlink.ErrNotImplemented))
}
