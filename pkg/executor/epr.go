package executor

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/qnos-dev/qnos/pkg/appmem"
	"github.com/qnos-dev/qnos/pkg/instr"
	"github.com/qnos-dev/qnos/pkg/operand"
	"github.com/qnos-dev/qnos/pkg/qlink"
)

// okFields is the per-pair width of an entanglement result array.
const okFields = qlink.ResultFieldsKeep

// requestKey routes link-layer responses to the request queue for one
// remote node and purpose.
type requestKey struct {
	remoteNodeID int32
	purposeID    int32
}

// eprRequest is one outstanding create_epr or recv_epr instruction.
// Requests with the same key are serviced in FIFO order; the head
// request absorbs responses until its pairs are exhausted.
type eprRequest struct {
	subroutineID int
	appID        int
	resultsArray operand.Address
	qubitArray   *operand.Address // nil for measure-directly
	request      *qlink.CreateRequest
	totalPairs   int
	pairsLeft    int
}

func (e *Executor) instrCreateEPR(id int, mem *appmem.Memory, c instr.CreateEPR) error {
	if e.netstack == nil {
		return ErrNoNetworkStack
	}
	remoteNodeID, err := e.getReg(mem, c.RemoteNodeID)
	if err != nil {
		return err
	}
	socketID, err := e.getReg(mem, c.EPRSocketID)
	if err != nil {
		return err
	}
	argArray, err := e.getReg(mem, c.ArgArray)
	if err != nil {
		return err
	}
	resultsArray, err := e.getReg(mem, c.ResultArray)
	if err != nil {
		return err
	}
	// The qubit address array register may be left undefined for
	// measure-directly requests.
	var qubitArray *operand.Address
	if v, defined, err := mem.Registers.Get(c.QubitAddrArray); err != nil {
		return err
	} else if defined {
		addr := operand.Address(v)
		qubitArray = &addr
	}

	purposeID, err := e.netstack.GetPurposeID(remoteNodeID, socketID)
	if err != nil {
		return err
	}
	args, err := mem.Arrays.Values(operand.Address(argArray))
	if err != nil {
		return err
	}
	req, err := qlink.NewCreateRequest(remoteNodeID, purposeID, args)
	if err != nil {
		return err
	}
	if req.Kind == qlink.KindCreateKeep {
		if qubitArray == nil {
			return errors.Errorf("create/keep request without qubit address array")
		}
		n, err := mem.Arrays.Len(*qubitArray)
		if err != nil {
			return err
		}
		if n != int(req.Number) {
			return errors.Errorf("qubit address array %s holds %d addresses for %d pairs",
				qubitArray, n, req.Number)
		}
	}

	if err := e.netstack.Put(req); err != nil {
		return err
	}
	key := requestKey{remoteNodeID: remoteNodeID, purposeID: purposeID}
	e.createRequests[key] = append(e.createRequests[key], &eprRequest{
		subroutineID: id,
		appID:        e.subroutines[id].AppID,
		resultsArray: operand.Address(resultsArray),
		qubitArray:   qubitArray,
		request:      &req,
		totalPairs:   int(req.Number),
		pairsLeft:    int(req.Number),
	})
	e.log.Debug("submitted entanglement request",
		zap.Int32("remote_node_id", remoteNodeID),
		zap.Int32("purpose_id", purposeID),
		zap.Int32("pairs", req.Number),
		zap.String("kind", req.Kind.String()))
	return nil
}

func (e *Executor) instrRecvEPR(id int, mem *appmem.Memory, c instr.RecvEPR) error {
	if e.netstack == nil {
		return ErrNoNetworkStack
	}
	remoteNodeID, err := e.getReg(mem, c.RemoteNodeID)
	if err != nil {
		return err
	}
	socketID, err := e.getReg(mem, c.EPRSocketID)
	if err != nil {
		return err
	}
	resultsArray, err := e.getReg(mem, c.ResultArray)
	if err != nil {
		return err
	}
	var qubitArray *operand.Address
	if v, defined, err := mem.Registers.Get(c.QubitAddrArray); err != nil {
		return err
	} else if defined {
		addr := operand.Address(v)
		qubitArray = &addr
	}

	purposeID, err := e.netstack.GetPurposeID(remoteNodeID, socketID)
	if err != nil {
		return err
	}
	// Pair count follows from the size of the result array.
	n, err := mem.Arrays.Len(operand.Address(resultsArray))
	if err != nil {
		return err
	}
	numPairs := n / okFields

	key := requestKey{remoteNodeID: remoteNodeID, purposeID: purposeID}
	e.recvRequests[key] = append(e.recvRequests[key], &eprRequest{
		subroutineID: id,
		appID:        e.subroutines[id].AppID,
		resultsArray: operand.Address(resultsArray),
		qubitArray:   qubitArray,
		totalPairs:   numPairs,
		pairsLeft:    numPairs,
	})
	e.log.Debug("accepting entanglement generation",
		zap.Int32("remote_node_id", remoteNodeID),
		zap.Int32("purpose_id", purposeID),
		zap.Int("pairs", numPairs))
	return nil
}

// HandleEPRResponse delivers one link-layer response and immediately
// tries to match pending responses against outstanding requests.
func (e *Executor) HandleEPRResponse(resp qlink.Response) error {
	e.pending = append(e.pending, resp)
	return e.processPendingResponses()
}

// ProcessPendingEPRResponses retries matching of buffered responses.
// Call it after conditions change, such as a virtual qubit address
// being freed or a new request being registered.
func (e *Executor) ProcessPendingEPRResponses() error {
	return e.processPendingResponses()
}

// PendingEPRResponses returns the number of buffered responses that
// could not be matched yet.
func (e *Executor) PendingEPRResponses() int {
	return len(e.pending)
}

// processPendingResponses scans the buffer in arrival order. Responses
// that cannot be matched yet are skipped in place; the first match is
// consumed and the scan restarts so earlier responses get another
// chance. A full pass without a match triggers the backoff hook and
// returns, leaving the buffer for a later retry.
func (e *Executor) processPendingResponses() error {
	if len(e.pending) == 0 {
		return nil
	}
	for i, resp := range e.pending {
		if resp.Type() == qlink.ReturnErr {
			return errors.Errorf("network stack returned error: %v", resp)
		}
		ok := resp.(qlink.OKResponse)

		isCreator := ok.CreatorNodeID(e.nodeID) == e.nodeID
		queues := e.recvRequests
		if isCreator {
			queues = e.createRequests
		}
		key := requestKey{remoteNodeID: ok.RemoteNode(), purposeID: ok.Purpose()}
		queue := queues[key]
		if len(queue) == 0 {
			// No matching request yet, leave the response buffered.
			continue
		}
		req := queue[0]
		pairIndex := req.totalPairs - req.pairsLeft

		handled, err := e.handleOKResponse(req, ok, pairIndex)
		if err != nil {
			return err
		}
		if !handled {
			continue
		}

		req.pairsLeft--
		if req.pairsLeft == 0 {
			queues[key] = queue[1:]
		}
		if err := e.storeResultFields(req, ok, pairIndex); err != nil {
			return err
		}
		e.pending = append(e.pending[:i], e.pending[i+1:]...)
		return e.processPendingResponses()
	}
	if e.ResponseBackoff != nil {
		e.ResponseBackoff()
	}
	return nil
}

func (e *Executor) handleOKResponse(req *eprRequest, resp qlink.OKResponse, pairIndex int) (bool, error) {
	switch ok := resp.(type) {
	case qlink.OKCreateKeep:
		return e.handleCreateKeep(req, ok, pairIndex)
	case qlink.OKMeasureDirectly:
		// Nothing to bind, the outcome lives in the result fields.
		return true, nil
	case qlink.OKRemotePrep:
		return false, errors.Wrap(qlink.ErrNotImplemented, "remote state preparation")
	}
	return false, errors.Errorf("unexpected response %v", resp)
}

// handleCreateKeep binds the delivered qubit to the virtual address the
// request designated for this pair. If that address is still occupied
// the response is deferred, to be retried when the address frees up.
func (e *Executor) handleCreateKeep(req *eprRequest, resp qlink.OKCreateKeep, pairIndex int) (bool, error) {
	mem := e.mem[req.appID]
	if mem == nil {
		return false, errors.Wrapf(ErrNoApplication, "app %d", req.appID)
	}
	if req.qubitArray == nil {
		return false, errors.Errorf("create/keep request without qubit address array")
	}
	cell, err := mem.Arrays.Get(*req.qubitArray, pairIndex)
	if err != nil {
		return false, err
	}
	if !cell.Defined {
		return false, errors.Errorf("qubit address %s[%d] is not defined", req.qubitArray, pairIndex)
	}
	virtual := int(cell.Value)
	if mem.HasVirtual(virtual) {
		e.log.Debug("virtual qubit address in use, deferring response",
			zap.Int("virtual", virtual), zap.Int("pair_index", pairIndex))
		return false, nil
	}
	physical := int(resp.LogicalQubitID)
	if err := e.backend.ReservePhysicalQubit(noYield{}, physical); err != nil {
		return false, err
	}
	if err := mem.AllocQubitAt(virtual, physical); err != nil {
		return false, err
	}
	e.log.Debug("bound entangled qubit",
		zap.Int("virtual", virtual), zap.Int("physical", physical))
	return true, nil
}

func (e *Executor) storeResultFields(req *eprRequest, resp qlink.OKResponse, pairIndex int) error {
	mem := e.mem[req.appID]
	if mem == nil {
		return errors.Wrapf(ErrNoApplication, "app %d", req.appID)
	}
	fields := resp.Fields()
	cells := make([]appmem.Cell, len(fields))
	for i, f := range fields {
		cells[i] = appmem.Def(f)
	}
	return mem.Arrays.SetSlice(req.resultsArray, pairIndex*okFields, cells)
}
