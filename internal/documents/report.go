package documents

// Step names one write in the document-creation sequence.
type Step string

const (
	StepSaveMaster    Step = "save_master"
	StepParseRefSeqNo Step = "parse_ref_seq_no"
	StepSaveQuestions Step = "save_questions"
	StepSaveValues    Step = "save_values"
	StepConfirmMaster Step = "confirm_master"
)

// CreationReport records how far a document creation got. The server offers
// no transaction across the master, question and value writes, so a failure
// after StepSaveMaster leaves committed rows behind; the report is what an
// operator reconciles against.
type CreationReport struct {
	Category         string `json:"category"`
	UserName         string `json:"user_name"`
	RefSeqNo         int64  `json:"ref_seq_no"`
	MasterSaved      bool   `json:"master_saved"`
	MasterUncertain  bool   `json:"master_uncertain,omitempty"`
	QuestionsWritten int    `json:"questions_written"`
	ValuesWritten    int    `json:"values_written"`
	Total            int    `json:"total"`
	Confirmed        bool   `json:"confirmed"`
	FailedStep       Step   `json:"failed_step,omitempty"`
	Err              string `json:"error,omitempty"`
}

// Partial reports whether rows were, or may have been, committed before the
// sequence failed. MasterUncertain is set when the master save got no usable
// reply, so the server may still have written the row.
func (r CreationReport) Partial() bool {
	return r.FailedStep != "" && (r.MasterSaved || r.MasterUncertain)
}
