// Package qlink defines the link-layer entanglement generation protocol
// surface: create/receive requests, the response variants returned by the
// network stack, and the NetworkStack interface the executor drives.
//
// Wire compatibility matters here. Requests are built from flat argument
// arrays and results are delivered back as flat field vectors; the field
// orders below are part of the protocol and must not be reordered.
package qlink

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/qnos-dev/qnos/pkg/appmem"
)

// Protocol sizes: the number of argument fields of a create request
// beyond the remote node id and purpose id, and the number of result
// fields written back per generated pair.
const (
	CreateRequestFields = 20
	ResultFieldsKeep    = 10
	ResultFieldsMeasure = 10
)

// ErrNotImplemented reports a protocol feature the runtime does not
// support yet.
var ErrNotImplemented = errors.New("not implemented")

// RequestKind selects what happens to generated pairs.
type RequestKind int32

const (
	KindCreateKeep      RequestKind = 0 // keep the qubit in memory
	KindMeasureDirectly RequestKind = 1 // measure immediately, return outcome
	KindRemotePrep      RequestKind = 2 // remote state preparation
)

func (k RequestKind) String() string {
	switch k {
	case KindCreateKeep:
		return "K"
	case KindMeasureDirectly:
		return "M"
	case KindRemotePrep:
		return "R"
	}
	return fmt.Sprintf("RequestKind(%d)", int32(k))
}

// ReturnType tags the response variants.
type ReturnType int32

const (
	ReturnOKCreateKeep      ReturnType = 0
	ReturnOKMeasureDirectly ReturnType = 1
	ReturnOKRemotePrep      ReturnType = 2
	ReturnErr               ReturnType = 3
)

func (t ReturnType) String() string {
	switch t {
	case ReturnOKCreateKeep:
		return "OK_K"
	case ReturnOKMeasureDirectly:
		return "OK_M"
	case ReturnOKRemotePrep:
		return "OK_R"
	case ReturnErr:
		return "ERR"
	}
	return fmt.Sprintf("ReturnType(%d)", int32(t))
}

// RandomBasis selects the basis set for measure-directly requests.
type RandomBasis int32

const (
	BasisNone RandomBasis = 0
	BasisXZ   RandomBasis = 1
	BasisXYZ  RandomBasis = 2
	BasisCHSH RandomBasis = 3
)

// BellState identifies which Bell state was generated.
type BellState int32

const (
	PhiPlus  BellState = 0
	PhiMinus BellState = 1
	PsiPlus  BellState = 2
	PsiMinus BellState = 3
)

// ErrorCode classifies link-layer failures.
type ErrorCode int32

const (
	ErrCodeUnsupported ErrorCode = 0
	ErrCodeNoTime      ErrorCode = 1
	ErrCodeNoResources ErrorCode = 2
	ErrCodeTimeout     ErrorCode = 3
	ErrCodeRejected    ErrorCode = 4
	ErrCodeOther       ErrorCode = 5
	ErrCodeExpired     ErrorCode = 6
	ErrCodeCreate      ErrorCode = 7
)

// CreateRequest asks the link layer to generate entangled pairs with a
// remote node. Field order follows the protocol layout.
type CreateRequest struct {
	RemoteNodeID int32
	PurposeID    int32

	Kind              RequestKind
	Number            int32
	RandomBasisLocal  RandomBasis
	RandomBasisRemote RandomBasis
	MinimumFidelity   int32
	TimeUnit          int32
	MaxTime           int32
	Priority          int32
	Atomic            int32
	Consecutive       int32
	ProbDistLocal1    int32
	ProbDistLocal2    int32
	ProbDistRemote1   int32
	ProbDistRemote2   int32
	RotationXLocal1   int32
	RotationYLocal    int32
	RotationXLocal2   int32
	RotationXRemote1  int32
	RotationYRemote   int32
	RotationXRemote2  int32
}

// NewCreateRequest builds a request from the flat argument array of a
// create instruction. Undefined cells take protocol defaults: kind K,
// one pair, no random bases, zeros elsewhere. The array must hold
// exactly CreateRequestFields entries.
func NewCreateRequest(remoteNodeID, purposeID int32, args []appmem.Cell) (CreateRequest, error) {
	if len(args) != CreateRequestFields {
		return CreateRequest{}, errors.Errorf(
			"create request needs %d arguments, got %d", CreateRequestFields, len(args))
	}
	pick := func(i int, def int32) int32 {
		if args[i].Defined {
			return args[i].Value
		}
		return def
	}
	return CreateRequest{
		RemoteNodeID:      remoteNodeID,
		PurposeID:         purposeID,
		Kind:              RequestKind(pick(0, int32(KindCreateKeep))),
		Number:            pick(1, 1),
		RandomBasisLocal:  RandomBasis(pick(2, int32(BasisNone))),
		RandomBasisRemote: RandomBasis(pick(3, int32(BasisNone))),
		MinimumFidelity:   pick(4, 0),
		TimeUnit:          pick(5, 0),
		MaxTime:           pick(6, 0),
		Priority:          pick(7, 0),
		Atomic:            pick(8, 0),
		Consecutive:       pick(9, 0),
		ProbDistLocal1:    pick(10, 0),
		ProbDistLocal2:    pick(11, 0),
		ProbDistRemote1:   pick(12, 0),
		ProbDistRemote2:   pick(13, 0),
		RotationXLocal1:   pick(14, 0),
		RotationYLocal:    pick(15, 0),
		RotationXLocal2:   pick(16, 0),
		RotationXRemote1:  pick(17, 0),
		RotationYRemote:   pick(18, 0),
		RotationXRemote2:  pick(19, 0),
	}, nil
}

// NetworkStack is the link layer as seen from the executor.
type NetworkStack interface {
	// Put submits a create request to the network.
	Put(req CreateRequest) error
	// SetupEPRSocket registers an EPR socket pairing before use.
	SetupEPRSocket(localSocketID, remoteNodeID, remoteSocketID int32) error
	// GetPurposeID resolves the purpose id used on the wire for a
	// local socket toward a remote node.
	GetPurposeID(remoteNodeID, localSocketID int32) (int32, error)
}
