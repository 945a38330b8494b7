package documents

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/erp-dms/dms-assistant/internal/catalog"
	"github.com/erp-dms/dms-assistant/internal/query"
	"github.com/erp-dms/dms-assistant/internal/rpc"
)

const (
	ProcDocMasterList     = "DMS_GetDocMaster_List"
	ProcDeleteMaster      = "DMS_Delete_DMS_Master"
	ProcCheckRights       = "DMS_CheckRights_ForTheUser"
	ProcAllowedCategories = "DMS_Get_Allowed_DocCategories"
	ProcIsAdmin           = "DMS_Is_Admin_User"
	ProcDashboardSummary  = "DMS_GetDashboard_OverallSummary"
)

var (
	ErrInvalidRecord = errors.New("invalid record")
	// ErrUnexpectedResponse means a save succeeded at the transport level but
	// its status message carried no quoted sequence number.
	ErrUnexpectedResponse = errors.New("unexpected save response")
)

var refSeqNoPattern = regexp.MustCompile(`'(\d+)'`)

var validate = validator.New()

// ParseRefSeqNo extracts the server-assigned key from a save message such as
// "Document saved, Ref No '1042'".
func ParseRefSeqNo(message string) (int64, error) {
	m := refSeqNoPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedResponse, message)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return n, nil
}

type userPayload struct {
	UserName string `json:"UserName"`
}

type deleteMasterPayload struct {
	UserName string `json:"UserName"`
	RefSeqNo int64  `json:"RefSeqNo"`
}

type Service struct {
	rpc rpc.Caller
	now func() time.Time
}

func NewService(c rpc.Caller) *Service {
	return &Service{rpc: c, now: time.Now}
}

// SaveMaster writes the master row and returns the raw status message. A
// RefSeqNo of zero is sent as NewRefSeqNo.
func (s *Service) SaveMaster(ctx context.Context, userName string, doc Document) (string, error) {
	if err := validate.Struct(doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if doc.RefSeqNo == 0 {
		doc.RefSeqNo = NewRefSeqNo
	}
	rec := rpc.NewRecord(MasterModel).
		Set(ColRefSeqNo, doc.RefSeqNo).
		Set(ColRelatedCategory, doc.RelatedCategory).
		Set(ColDocumentName, doc.DocumentName).
		Set(ColUserName, userName).
		Set(ColEntryDate, s.now())
	return rpc.SaveData(ctx, s.rpc, userName, rec)
}

// SaveValue writes one answer row; the master key must already be resolved.
func (s *Service) SaveValue(ctx context.Context, userName string, v DocumentValue) (string, error) {
	if err := validate.Struct(v); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	rec := rpc.NewRecord(ValueModel).
		Set(ColRefSeqNo, v.RefSeqNo).
		Set(ColSerialNo, v.SerialNo).
		Set(ColCategoryName, v.CategoryName).
		Set(ColRefKey, v.RefKey).
		Set(ColRefValue, v.RefValue)
	return rpc.SaveData(ctx, s.rpc, userName, rec)
}

// Master returns nil when no master row has the given key.
func (s *Service) Master(ctx context.Context, refSeqNo int64) (*Document, error) {
	where, err := query.EqInt(ColRefSeqNo, refSeqNo)
	if err != nil {
		return nil, err
	}
	rows, err := rpc.GetData(ctx, s.rpc, MasterModel, where, "")
	if err != nil {
		return nil, err
	}
	docs, err := rpc.DecodeRows[Document](rows)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return &docs[0], nil
}

func (s *Service) Values(ctx context.Context, refSeqNo int64) ([]DocumentValue, error) {
	where, err := query.EqInt(ColRefSeqNo, refSeqNo)
	if err != nil {
		return nil, err
	}
	orderBy, _ := query.OrderBy(ColSerialNo, false)
	rows, err := rpc.GetData(ctx, s.rpc, ValueModel, where, orderBy)
	if err != nil {
		return nil, err
	}
	return rpc.DecodeRows[DocumentValue](rows)
}

func (s *Service) DocMasterList(ctx context.Context, userName string) ([]rpc.Row, error) {
	res, err := s.rpc.Call(ctx, ProcDocMasterList, userPayload{UserName: userName})
	if err != nil {
		return nil, err
	}
	return res.Rows()
}

func (s *Service) DeleteMaster(ctx context.Context, userName string, refSeqNo int64) (string, error) {
	res, err := s.rpc.Call(ctx, ProcDeleteMaster, deleteMasterPayload{UserName: userName, RefSeqNo: refSeqNo})
	if err != nil {
		return "", err
	}
	return res.Message()
}

// CheckRights returns the user's form permissions keyed by form name.
func (s *Service) CheckRights(ctx context.Context, userName string) (map[string]bool, error) {
	res, err := s.rpc.Call(ctx, ProcCheckRights, userPayload{UserName: userName})
	if err != nil {
		return nil, err
	}
	rows, err := res.Rows()
	if err != nil {
		return nil, err
	}
	rights, err := rpc.DecodeRows[Right](rows)
	if err != nil {
		return nil, err
	}
	perms := make(map[string]bool, len(rights))
	for _, r := range rights {
		if r.Form != "" {
			perms[r.Form] = r.Allowed
		}
	}
	return perms, nil
}

func (s *Service) AllowedCategories(ctx context.Context, userName string) ([]catalog.Category, error) {
	res, err := s.rpc.Call(ctx, ProcAllowedCategories, userPayload{UserName: userName})
	if err != nil {
		return nil, err
	}
	rows, err := res.Rows()
	if err != nil {
		return nil, err
	}
	return rpc.DecodeRows[catalog.Category](rows)
}

// IsAdmin accepts either a bare flag ("Y", "true", "1") or a row carrying the
// flag in IS_ADMIN (or in its only column).
func (s *Service) IsAdmin(ctx context.Context, userName string) (bool, error) {
	res, err := s.rpc.Call(ctx, ProcIsAdmin, userPayload{UserName: userName})
	if err != nil {
		return false, err
	}
	trimmed := strings.TrimSpace(string(res))
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		rows, err := res.Rows()
		if err != nil {
			return false, err
		}
		if len(rows) == 0 {
			return false, nil
		}
		if v, ok := rows[0]["IS_ADMIN"]; ok {
			return truthy(fmt.Sprint(v)), nil
		}
		if len(rows[0]) == 1 {
			for _, v := range rows[0] {
				return truthy(fmt.Sprint(v)), nil
			}
		}
		return false, nil
	}
	msg, err := res.Message()
	if err != nil {
		return false, err
	}
	return truthy(msg), nil
}

func (s *Service) DashboardSummary(ctx context.Context, userName string) ([]rpc.Row, error) {
	res, err := s.rpc.Call(ctx, ProcDashboardSummary, userPayload{UserName: userName})
	if err != nil {
		return nil, err
	}
	return res.Rows()
}

// CategoryCounts breaks the user's documents down by category, largest first.
func (s *Service) CategoryCounts(ctx context.Context, userName string) ([]CategoryCount, error) {
	where, err := query.Eq(ColUserName, userName)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("SELECT %[1]s, COUNT(*) AS DOCUMENT_COUNT FROM %[2]s WHERE %[3]s GROUP BY %[1]s ORDER BY DOCUMENT_COUNT DESC, %[1]s",
		ColRelatedCategory, MasterModel, where)
	rows, err := rpc.GetDataFromQuery(ctx, s.rpc, sql)
	if err != nil {
		return nil, err
	}
	return rpc.DecodeRows[CategoryCount](rows)
}

func truthy(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "Y", "YES", "T", "TRUE", "1":
		return true
	}
	return false
}
