package documents

const (
	MasterModel = "DMS_MASTER"
	ValueModel  = "DMS_DOCUMENT_VALUES"

	ColRefSeqNo        = "REF_SEQ_NO"
	ColRelatedCategory = "RELATED_CATEGORY"
	ColDocumentName    = "DOCUMENT_NAME"
	ColUserName        = "USER_NAME"
	ColEntryDate       = "ENTRY_DATE"
	ColSerialNo        = "SERIAL_NO"
	ColCategoryName    = "CATEGORY_NAME"
	ColRefKey          = "REF_KEY"
	ColRefValue        = "REF_VALUE"
)

// NewRefSeqNo asks the server to assign a fresh primary key on save.
const NewRefSeqNo int64 = -1

// Document is the master record of one uploaded and classified file.
type Document struct {
	RefSeqNo        int64  `json:"ref_seq_no" rpc:"REF_SEQ_NO"`
	RelatedCategory string `json:"related_category" rpc:"RELATED_CATEGORY" validate:"required"`
	DocumentName    string `json:"document_name" rpc:"DOCUMENT_NAME"`
	UserName        string `json:"user_name" rpc:"USER_NAME"`
	EntryDate       string `json:"entry_date" rpc:"ENTRY_DATE"`
}

// CategoryCount is one line of the per-category document breakdown.
type CategoryCount struct {
	Category string `json:"category" rpc:"RELATED_CATEGORY"`
	Count    int    `json:"count" rpc:"DOCUMENT_COUNT"`
}

// DocumentValue is one answer row linked to a master record.
type DocumentValue struct {
	RefSeqNo     int64  `json:"ref_seq_no" rpc:"REF_SEQ_NO" validate:"gt=0"`
	SerialNo     int    `json:"serial_no" rpc:"SERIAL_NO" validate:"gte=1"`
	CategoryName string `json:"category_name" rpc:"CATEGORY_NAME" validate:"required"`
	RefKey       string `json:"ref_key" rpc:"REF_KEY"`
	RefValue     string `json:"ref_value" rpc:"REF_VALUE"`
}

// Right is one row of DMS_CheckRights_ForTheUser.
type Right struct {
	Form    string `rpc:"FORM_NAME"`
	Allowed bool   `rpc:"HAS_RIGHTS"`
}
