package qlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnos-dev/qnos/pkg/appmem"
)

// ===== Create request construction =====

func TestNewCreateRequestDefaults(t *testing.T) {
	args := make([]appmem.Cell, CreateRequestFields)

	req, err := NewCreateRequest(2, 7, args)
	require.NoError(t, err)

	assert.Equal(t, int32(2), req.RemoteNodeID)
	assert.Equal(t, int32(7), req.PurposeID)
	assert.Equal(t, KindCreateKeep, req.Kind)
	assert.Equal(t, int32(1), req.Number)
	assert.Equal(t, BasisNone, req.RandomBasisLocal)
	assert.Equal(t, BasisNone, req.RandomBasisRemote)
	assert.Equal(t, int32(0), req.MaxTime)
}

func TestNewCreateRequestOverrides(t *testing.T) {
	args := make([]appmem.Cell, CreateRequestFields)
	args[0] = appmem.Def(int32(KindMeasureDirectly))
	args[1] = appmem.Def(3)
	args[2] = appmem.Def(int32(BasisXZ))
	args[6] = appmem.Def(5000)

	req, err := NewCreateRequest(1, 0, args)
	require.NoError(t, err)

	assert.Equal(t, KindMeasureDirectly, req.Kind)
	assert.Equal(t, int32(3), req.Number)
	assert.Equal(t, BasisXZ, req.RandomBasisLocal)
	assert.Equal(t, int32(5000), req.MaxTime)
}

func TestNewCreateRequestLength(t *testing.T) {
	_, err := NewCreateRequest(1, 0, make([]appmem.Cell, CreateRequestFields-1))
	assert.Error(t, err)
	_, err = NewCreateRequest(1, 0, make([]appmem.Cell, CreateRequestFields+1))
	assert.Error(t, err)
}

// ===== Responses =====

func TestCreatorNodeID(t *testing.T) {
	// directionality 0: the local node submitted the request
	resp := OKCreateKeep{RemoteNodeID: 2, DirectionalityFlag: 0}
	assert.Equal(t, int32(1), resp.CreatorNodeID(1))

	// directionality 1: the remote node submitted it
	resp.DirectionalityFlag = 1
	assert.Equal(t, int32(2), resp.CreatorNodeID(1))
}

func TestResponseFields(t *testing.T) {
	k := OKCreateKeep{
		CreateID:       4,
		LogicalQubitID: 2,
		SequenceNumber: 9,
		PurposeID:      7,
		RemoteNodeID:   3,
		BellState:      PsiMinus,
	}
	fields := k.Fields()
	require.Len(t, fields, ResultFieldsKeep)
	assert.Equal(t, int32(ReturnOKCreateKeep), fields[0])
	assert.Equal(t, int32(4), fields[1])
	assert.Equal(t, int32(2), fields[2])
	assert.Equal(t, int32(PsiMinus), fields[9])

	m := OKMeasureDirectly{
		CreateID:           1,
		MeasurementOutcome: 1,
		MeasurementBasis:   2,
		PurposeID:          7,
		RemoteNodeID:       3,
	}
	fields = m.Fields()
	require.Len(t, fields, ResultFieldsMeasure)
	assert.Equal(t, int32(ReturnOKMeasureDirectly), fields[0])
	assert.Equal(t, int32(1), fields[2])
	assert.Equal(t, int32(2), fields[3])
}

func TestResponseTypes(t *testing.T) {
	assert.Equal(t, ReturnOKCreateKeep, OKCreateKeep{}.Type())
	assert.Equal(t, ReturnOKMeasureDirectly, OKMeasureDirectly{}.Type())
	assert.Equal(t, ReturnOKRemotePrep, OKRemotePrep{}.Type())
	assert.Equal(t, ReturnErr, Err{}.Type())
}
