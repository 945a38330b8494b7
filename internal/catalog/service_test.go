package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp-dms/dms-assistant/internal/rpc"
	"github.com/erp-dms/dms-assistant/internal/rpc/rpctest"
)

func TestCategoriesDecodesRows(t *testing.T) {
	fake := &rpctest.Fake{Handler: func(proc string, p map[string]any) (rpc.Result, error) {
		return rpctest.JSON([]map[string]any{
			{"CATEGORY_NAME": "Invoice", "DISPLAY_NAME": "Invoices", "MODULE_NAME": "FIN", "SEARCH_TAGS": "bill,purchase"},
			{"CATEGORY_NAME": "Contract", "SEARCH_TAGS": "agreement"},
		}), nil
	}}

	cats, err := NewService(fake).Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, Category{Name: "Invoice", DisplayName: "Invoices", ModuleName: "FIN", SearchTags: "bill,purchase"}, cats[0])

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, rpc.ProcGetData, calls[0].Procedure)
	assert.Equal(t, CategoryModel, calls[0].Payload["DataModelName"])
	assert.Equal(t, "", calls[0].Payload["WhereCondition"])
	assert.Equal(t, "CATEGORY_NAME", calls[0].Payload["Orderby"])
}

func TestCategoryNotFoundIsNil(t *testing.T) {
	fake := &rpctest.Fake{}
	cat, err := NewService(fake).Category(context.Background(), "Nope")
	require.NoError(t, err)
	assert.Nil(t, cat)
}

func TestQuestionsFilterIsEscaped(t *testing.T) {
	fake := &rpctest.Fake{Handler: func(proc string, p map[string]any) (rpc.Result, error) {
		return rpctest.JSON([]map[string]any{
			{"CATEGORY_NAME": "Vendor's Bill", "QUESTION_FOR_AI": "Total amount?", "REF_KEY": "TOTAL", "IS_MANDATORY": "Y"},
		}), nil
	}}

	qs, err := NewService(fake).Questions(context.Background(), "Vendor's Bill")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.True(t, qs[0].IsMandatory)
	assert.Equal(t, "TOTAL", qs[0].RefKey)
	assert.Equal(t, "CATEGORY_NAME = 'Vendor''s Bill'", fake.Calls()[0].Payload["WhereCondition"])
}

func TestSaveQuestionRequiresCategory(t *testing.T) {
	fake := &rpctest.Fake{}
	_, err := NewService(fake).SaveQuestion(context.Background(), "jdoe", AIQuestion{QuestionText: "Total?"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Empty(t, fake.Calls(), "no network call on validation failure")
}

func TestSaveQuestionEncodesRecord(t *testing.T) {
	fake := &rpctest.Fake{Handler: func(proc string, p map[string]any) (rpc.Result, error) {
		return rpctest.JSON("Saved"), nil
	}}
	msg, err := NewService(fake).SaveQuestion(context.Background(), "jdoe", AIQuestion{
		CategoryName: "Invoice", QuestionText: "Total amount?", RefKey: "TOTAL", IsMandatory: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Saved", msg)

	call := fake.Calls()[0]
	assert.Equal(t, rpc.ProcSaveData, call.Procedure)
	assert.Equal(t, "jdoe", call.Payload["UserName"])
	assert.Equal(t,
		"<DMS_CATEGORY_AI_QUESTIONS><CATEGORY_NAME>Invoice</CATEGORY_NAME><QUESTION_FOR_AI>Total amount?</QUESTION_FOR_AI>"+
			"<REF_KEY>TOTAL</REF_KEY><IS_MANDATORY>true</IS_MANDATORY></DMS_CATEGORY_AI_QUESTIONS>",
		call.Payload["DModelData"])
}

func TestDeleteQuestionCombinesPredicates(t *testing.T) {
	fake := &rpctest.Fake{Handler: func(proc string, p map[string]any) (rpc.Result, error) {
		return rpctest.JSON("Deleted"), nil
	}}
	_, err := NewService(fake).DeleteQuestion(context.Background(), "jdoe", "Invoice", "Total amount?")
	require.NoError(t, err)

	call := fake.Calls()[0]
	assert.Equal(t, rpc.ProcDeleteData, call.Procedure)
	assert.Equal(t, "CATEGORY_NAME = 'Invoice' AND QUESTION_FOR_AI = 'Total amount?'", call.Payload["WhereCondition"])
}

func TestTransportErrorPropagates(t *testing.T) {
	boom := &rpc.TransportError{Procedure: rpc.ProcGetData, StatusCode: 502}
	fake := &rpctest.Fake{Handler: func(proc string, p map[string]any) (rpc.Result, error) {
		return nil, boom
	}}
	_, err := NewService(fake).Modules(context.Background())
	var te *rpc.TransportError
	assert.True(t, errors.As(err, &te))
}
