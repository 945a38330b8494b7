package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodeProbe struct {
	Name      string `rpc:"CATEGORY_NAME"`
	SeqNo     int64  `rpc:"REF_SEQ_NO"`
	Mandatory bool   `rpc:"IS_MANDATORY"`
}

func TestDecodeRowsCoercesScalars(t *testing.T) {
	rows := []Row{
		{"category_name": "Invoice", "REF_SEQ_NO": float64(17), "IS_MANDATORY": "Y"},
		{"CATEGORY_NAME": "Contract", "REF_SEQ_NO": "18", "IS_MANDATORY": "N"},
		{"CATEGORY_NAME": "Memo", "REF_SEQ_NO": 19, "IS_MANDATORY": true},
	}
	got, err := DecodeRows[decodeProbe](rows)
	require.NoError(t, err)
	assert.Equal(t, []decodeProbe{
		{Name: "Invoice", SeqNo: 17, Mandatory: true},
		{Name: "Contract", SeqNo: 18, Mandatory: false},
		{Name: "Memo", SeqNo: 19, Mandatory: true},
	}, got)
}

func TestDecodeRowsEmpty(t *testing.T) {
	got, err := DecodeRows[decodeProbe](nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestDecodeRowsRejectsBadValue(t *testing.T) {
	_, err := DecodeRows[decodeProbe]([]Row{{"REF_SEQ_NO": "seventeen"}})
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}
