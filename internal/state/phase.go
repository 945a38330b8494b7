package state

import "fmt"

// Phase is where an analysis session is in the upload → classify → summarise
// → create workflow.
type Phase int

const (
	Idle Phase = iota
	Uploading
	Classified
	AwaitingCategoryConfirmation
	GeneratingSummary
	SummaryReady
	CreatingDocument
	DocumentCreated
	Error
)

var phaseNames = [...]string{
	Idle:                         "idle",
	Uploading:                    "uploading",
	Classified:                   "classified",
	AwaitingCategoryConfirmation: "awaiting_category_confirmation",
	GeneratingSummary:            "generating_summary",
	SummaryReady:                 "summary_ready",
	CreatingDocument:             "creating_document",
	DocumentCreated:              "document_created",
	Error:                        "error",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Busy phases have a network call in flight; no new operation may start.
func (p Phase) Busy() bool {
	return p == Uploading || p == GeneratingSummary || p == CreatingDocument
}

// transitions lists the phases reachable from each phase. Error is reachable
// from everywhere and Reset returns to Idle from everywhere; neither is listed.
var transitions = map[Phase][]Phase{
	Idle:                         {Uploading},
	Uploading:                    {Classified, AwaitingCategoryConfirmation},
	Classified:                   {Classified, AwaitingCategoryConfirmation, GeneratingSummary, CreatingDocument, Uploading},
	AwaitingCategoryConfirmation: {Classified, AwaitingCategoryConfirmation, GeneratingSummary, Uploading},
	GeneratingSummary:            {SummaryReady},
	SummaryReady:                 {Classified, AwaitingCategoryConfirmation, GeneratingSummary, CreatingDocument, Uploading},
	CreatingDocument:             {DocumentCreated},
	DocumentCreated:              {Uploading},
	Error:                        {Uploading, Classified, GeneratingSummary, CreatingDocument},
}

func CanTransition(from, to Phase) bool {
	if to == Error || to == Idle {
		return true
	}
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}
