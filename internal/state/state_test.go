package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp-dms/dms-assistant/internal/analysis"
	"github.com/erp-dms/dms-assistant/internal/documents"
)

func mustReduce(t *testing.T, s State, actions ...Action) State {
	t.Helper()
	for _, a := range actions {
		var err error
		s, err = Reduce(s, a)
		require.NoError(t, err, "%T", a)
	}
	return s
}

func TestAppendAnalysisSummaryIsIdempotentByQuestion(t *testing.T) {
	item := analysis.SummaryItem{Question: "Total amount?", Text: "500", Label: "TOTAL"}

	s := mustReduce(t, State{},
		AppendAnalysisSummary{Items: []analysis.SummaryItem{item}},
		AppendAnalysisSummary{Items: []analysis.SummaryItem{item}},
		AppendAnalysisSummary{Items: []analysis.SummaryItem{{Question: "  TOTAL AMOUNT? ", Text: "600"}}},
	)

	require.Len(t, s.SummaryItems, 1)
	assert.Equal(t, "500", s.SummaryItems[0].Text)
}

func TestMergeSummaryDedupesWithinBatch(t *testing.T) {
	existing := []analysis.SummaryItem{{Question: "a?"}}
	incoming := []analysis.SummaryItem{{Question: "b?", Text: "1"}, {Question: "B?", Text: "2"}, {Question: "a?"}}

	got := MergeSummary(existing, incoming)

	assert.Equal(t, []analysis.SummaryItem{{Question: "a?"}, {Question: "b?", Text: "1"}}, got)
	assert.Len(t, existing, 1)
}

func TestHappyPathPhases(t *testing.T) {
	s := mustReduce(t, State{}, UploadStarted{File: analysis.UploadedFile{Name: "inv.pdf"}})
	assert.Equal(t, Uploading, s.Phase)
	assert.True(t, s.IsLoading())

	s = mustReduce(t, s, ClassificationReceived{Classification: &analysis.Classification{DocumentType: "invoice"}})
	assert.Equal(t, Classified, s.Phase)
	assert.False(t, s.IsLoading())

	s = mustReduce(t, s,
		TypeConfirmed{Category: "Invoice"},
		SummaryRequested{Category: "Invoice"},
		SummaryGenerated{},
		AppendAnalysisSummary{Items: []analysis.SummaryItem{{Question: "total amount?", Text: "500"}}},
	)
	assert.Equal(t, SummaryReady, s.Phase)
	assert.Len(t, s.SummaryItems, 1)
	assert.Equal(t, "Invoice", s.SelectedType)

	report := &documents.CreationReport{RefSeqNo: 42, MasterSaved: true}
	s = mustReduce(t, s, CreateDocumentStarted{}, DocumentSaved{Document: &documents.Document{RefSeqNo: 42}, Report: report})
	assert.Equal(t, DocumentCreated, s.Phase)
	assert.Equal(t, int64(42), s.Document.RefSeqNo)
}

func TestUnparseableClassificationShowsDropdown(t *testing.T) {
	s := mustReduce(t, State{},
		UploadStarted{File: analysis.UploadedFile{Name: "x"}},
		ClassificationReceived{},
	)
	assert.Equal(t, AwaitingCategoryConfirmation, s.Phase)
	assert.True(t, s.ShowDropdown)
	assert.True(t, s.ConfirmationFailed)

	s = mustReduce(t, s, TypeConfirmed{Category: "Contract"})
	assert.Equal(t, Classified, s.Phase)
	assert.False(t, s.ShowDropdown)
}

func TestCategoryChangeAfterSummaryDropsServerItems(t *testing.T) {
	ready := mustReduce(t, State{},
		UploadStarted{File: analysis.UploadedFile{Name: "x"}},
		ClassificationReceived{Classification: &analysis.Classification{DocumentType: "invoice"}},
		TypeConfirmed{Category: "Invoice"},
		SummaryRequested{Category: "Invoice"},
		SummaryGenerated{},
		AppendAnalysisSummary{Items: []analysis.SummaryItem{{Question: "total amount?", Text: "500"}}},
		LocalQuestionAdded{Question: analysis.LocalQuestion{SummaryItem: analysis.SummaryItem{Question: "Due?", Text: "May"}}},
	)

	same := mustReduce(t, ready, TypeConfirmed{Category: "Invoice"})
	assert.Equal(t, Classified, same.Phase)
	assert.Len(t, same.SummaryItems, 1)

	other := mustReduce(t, ready, TypeConfirmed{Category: "Contract"})
	assert.Equal(t, Classified, other.Phase)
	assert.Equal(t, "Contract", other.SelectedType)
	assert.Empty(t, other.SummaryItems)
	assert.Len(t, other.LocalQuestions, 1)

	missed := mustReduce(t, ready, ConfirmationFailed{Notice: "not found"})
	assert.Equal(t, AwaitingCategoryConfirmation, missed.Phase)
	assert.Empty(t, missed.SummaryItems)
}

func TestInvalidTransitionsAreRejected(t *testing.T) {
	tests := []struct {
		name string
		from Phase
		a    Action
	}{
		{"create from idle", Idle, CreateDocumentStarted{}},
		{"summary while uploading", Uploading, SummaryRequested{Category: "Invoice"}},
		{"upload while creating", CreatingDocument, UploadStarted{}},
		{"summary result without request", Classified, SummaryGenerated{}},
		{"document saved without start", SummaryReady, DocumentSaved{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := State{Phase: tt.from, SelectedType: "keep"}
			out, err := Reduce(in, tt.a)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, in, out)
		})
	}
}

func TestFailedIsReachableFromAnyPhase(t *testing.T) {
	for p := Idle; p <= Error; p++ {
		s, err := Reduce(State{Phase: p, SelectedType: "Invoice"}, Failed{Message: "boom"})
		require.NoError(t, err, p.String())
		assert.Equal(t, Error, s.Phase)
		assert.Equal(t, "boom", s.Error)
		assert.Equal(t, "Invoice", s.SelectedType)
	}
}

func TestLocalQuestionRepeatingSummaryItemIsSkipped(t *testing.T) {
	s := mustReduce(t, State{},
		AppendAnalysisSummary{Items: []analysis.SummaryItem{{Question: "a?"}, {Question: "b?"}}},
		LocalQuestionAdded{Question: analysis.LocalQuestion{SummaryItem: analysis.SummaryItem{Question: " B? ", Text: "other"}}},
		LocalQuestionAdded{Question: analysis.LocalQuestion{SummaryItem: analysis.SummaryItem{Question: "C?"}}},
		LocalQuestionAdded{Question: analysis.LocalQuestion{SummaryItem: analysis.SummaryItem{Question: "c?"}}},
	)
	require.Len(t, s.LocalQuestions, 1)
	assert.Equal(t, "C?", s.LocalQuestions[0].Question)
	assert.Len(t, s.Items(), 3)
}

func TestRemoveSummaryItemDropsLocalQuestionToo(t *testing.T) {
	s := mustReduce(t, State{},
		AppendAnalysisSummary{Items: []analysis.SummaryItem{{Question: "a?"}, {Question: "b?"}}},
		LocalQuestionAdded{Question: analysis.LocalQuestion{SummaryItem: analysis.SummaryItem{Question: "C?"}}},
	)
	require.Len(t, s.LocalQuestions, 1)

	before := s
	s = mustReduce(t, s, RemoveSummaryItem{Question: " c? "}, RemoveSummaryItem{Question: "B?"})
	assert.Equal(t, []analysis.SummaryItem{{Question: "a?"}}, s.SummaryItems)
	assert.Empty(t, s.LocalQuestions)
	assert.Len(t, before.SummaryItems, 2)
	assert.Len(t, before.LocalQuestions, 1)
}

func TestItemsMergesLocalQuestions(t *testing.T) {
	s := State{
		SummaryItems: []analysis.SummaryItem{{Question: "a?", Text: "1"}},
		LocalQuestions: []analysis.LocalQuestion{
			{SummaryItem: analysis.SummaryItem{Question: "A?", Text: "dup"}},
			{SummaryItem: analysis.SummaryItem{Question: "c?", Text: "3"}},
		},
	}
	assert.Equal(t, []analysis.SummaryItem{{Question: "a?", Text: "1"}, {Question: "c?", Text: "3"}}, s.Items())
}

func TestResetReturnsIdle(t *testing.T) {
	s := mustReduce(t, State{Phase: SummaryReady, SelectedType: "Invoice"}, Reset{})
	assert.Equal(t, State{}, s)
}

func TestStoreNotifiesSubscribers(t *testing.T) {
	st := NewStore()
	var mu sync.Mutex
	var seen []Phase
	unsubscribe := st.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s.Phase)
		mu.Unlock()
	})

	_, err := st.Dispatch(UploadStarted{File: analysis.UploadedFile{Name: "a"}})
	require.NoError(t, err)
	_, err = st.Dispatch(CreateDocumentStarted{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, Uploading, st.State().Phase)

	unsubscribe()
	_, err = st.Dispatch(Failed{Message: "x"})
	require.NoError(t, err)

	assert.Equal(t, []Phase{Uploading}, seen)
}

func TestPhaseMarshalText(t *testing.T) {
	b, err := SummaryReady.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "summary_ready", string(b))
	assert.Equal(t, "phase(99)", Phase(99).String())
}
