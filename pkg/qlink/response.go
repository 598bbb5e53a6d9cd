package qlink

import "fmt"

// Response is any message the link layer delivers back to a node.
type Response interface {
	Type() ReturnType
	// RemoteNode and Purpose key the response to the request queues.
	RemoteNode() int32
	Purpose() int32
}

// OKResponse is a successful generation result for one pair.
type OKResponse interface {
	Response
	// CreatorNodeID resolves which node submitted the create request,
	// given the id of the node receiving this response.
	CreatorNodeID(localNodeID int32) int32
	// Fields flattens the response into the result-array layout.
	Fields() []int32
}

// OKCreateKeep reports one generated pair kept in memory.
type OKCreateKeep struct {
	CreateID           int32
	LogicalQubitID     int32
	DirectionalityFlag int32
	SequenceNumber     int32
	PurposeID          int32
	RemoteNodeID       int32
	Goodness           int32
	GoodnessTime       int32
	BellState          BellState
}

func (OKCreateKeep) Type() ReturnType { return ReturnOKCreateKeep }
func (r OKCreateKeep) RemoteNode() int32 { return r.RemoteNodeID }
func (r OKCreateKeep) Purpose() int32 { return r.PurposeID }

func (r OKCreateKeep) CreatorNodeID(localNodeID int32) int32 {
	if r.DirectionalityFlag == 1 {
		return r.RemoteNodeID
	}
	return localNodeID
}

func (r OKCreateKeep) Fields() []int32 {
	return []int32{
		int32(r.Type()),
		r.CreateID,
		r.LogicalQubitID,
		r.DirectionalityFlag,
		r.SequenceNumber,
		r.PurposeID,
		r.RemoteNodeID,
		r.Goodness,
		r.GoodnessTime,
		int32(r.BellState),
	}
}

func (r OKCreateKeep) String() string {
	return fmt.Sprintf("OK_K{create_id=%d qubit=%d remote=%d purpose=%d}",
		r.CreateID, r.LogicalQubitID, r.RemoteNodeID, r.PurposeID)
}

// OKMeasureDirectly reports one generated pair measured at the link
// layer, carrying the outcome instead of a qubit.
type OKMeasureDirectly struct {
	CreateID           int32
	MeasurementOutcome int32
	MeasurementBasis   int32
	DirectionalityFlag int32
	SequenceNumber     int32
	PurposeID          int32
	RemoteNodeID       int32
	Goodness           int32
	BellState          BellState
}

func (OKMeasureDirectly) Type() ReturnType { return ReturnOKMeasureDirectly }
func (r OKMeasureDirectly) RemoteNode() int32 { return r.RemoteNodeID }
func (r OKMeasureDirectly) Purpose() int32 { return r.PurposeID }

func (r OKMeasureDirectly) CreatorNodeID(localNodeID int32) int32 {
	if r.DirectionalityFlag == 1 {
		return r.RemoteNodeID
	}
	return localNodeID
}

func (r OKMeasureDirectly) Fields() []int32 {
	return []int32{
		int32(r.Type()),
		r.CreateID,
		r.MeasurementOutcome,
		r.MeasurementBasis,
		r.DirectionalityFlag,
		r.SequenceNumber,
		r.PurposeID,
		r.RemoteNodeID,
		r.Goodness,
		int32(r.BellState),
	}
}

func (r OKMeasureDirectly) String() string {
	return fmt.Sprintf("OK_M{create_id=%d outcome=%d remote=%d purpose=%d}",
		r.CreateID, r.MeasurementOutcome, r.RemoteNodeID, r.PurposeID)
}

// OKRemotePrep reports one pair used for remote state preparation.
type OKRemotePrep struct {
	CreateID           int32
	MeasurementOutcome int32
	DirectionalityFlag int32
	SequenceNumber     int32
	PurposeID          int32
	RemoteNodeID       int32
	Goodness           int32
	BellState          BellState
}

func (OKRemotePrep) Type() ReturnType { return ReturnOKRemotePrep }
func (r OKRemotePrep) RemoteNode() int32 { return r.RemoteNodeID }
func (r OKRemotePrep) Purpose() int32 { return r.PurposeID }

func (r OKRemotePrep) CreatorNodeID(localNodeID int32) int32 {
	if r.DirectionalityFlag == 1 {
		return r.RemoteNodeID
	}
	return localNodeID
}

func (r OKRemotePrep) Fields() []int32 {
	return []int32{
		int32(r.Type()),
		r.CreateID,
		r.MeasurementOutcome,
		r.DirectionalityFlag,
		r.SequenceNumber,
		r.PurposeID,
		r.RemoteNodeID,
		r.Goodness,
		int32(r.BellState),
	}
}

func (r OKRemotePrep) String() string {
	return fmt.Sprintf("OK_R{create_id=%d outcome=%d remote=%d purpose=%d}",
		r.CreateID, r.MeasurementOutcome, r.RemoteNodeID, r.PurposeID)
}

// Err reports link-layer failure of a request.
type Err struct {
	CreateID               int32
	Code                   ErrorCode
	UseSequenceNumberRange int32
	SequenceNumberLow      int32
	SequenceNumberHigh     int32
	OriginNodeID           int32
}

func (Err) Type() ReturnType { return ReturnErr }

// Error responses are fatal and never matched against a request queue.
func (Err) RemoteNode() int32 { return 0 }
func (Err) Purpose() int32 { return 0 }

func (e Err) String() string {
	return fmt.Sprintf("ERR{create_id=%d code=%d origin=%d}", e.CreateID, e.Code, e.OriginNodeID)
}
