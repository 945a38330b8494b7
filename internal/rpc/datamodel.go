package rpc

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erp-dms/dms-assistant/internal/query"
)

const (
	ProcGetData          = "DataModel_GetData"
	ProcSaveData         = "DataModel_SaveData"
	ProcDeleteData       = "DataModel_DeleteData"
	ProcGetDataFromQuery = "DataModel_GetDataFrom_Query"
)

// EntryDateLayout is the date format the server stores in ENTRY_DATE columns.
const EntryDateLayout = "2006-01-02 15:04:05"

type getDataPayload struct {
	DataModelName  string `json:"DataModelName"`
	WhereCondition string `json:"WhereCondition"`
	Orderby        string `json:"Orderby"`
}

type saveDataPayload struct {
	UserName   string `json:"UserName"`
	DModelData string `json:"DModelData"`
}

type deleteDataPayload struct {
	UserName       string `json:"UserName"`
	DataModelName  string `json:"DataModelName"`
	WhereCondition string `json:"WhereCondition"`
}

type queryPayload struct {
	SQLQuery string `json:"SQLQuery"`
}

// GetData reads the rows of a data model matching where, ordered by orderBy.
func GetData(ctx context.Context, c Caller, model string, where query.Predicate, orderBy string) ([]Row, error) {
	res, err := c.Call(ctx, ProcGetData, getDataPayload{
		DataModelName:  model,
		WhereCondition: where.String(),
		Orderby:        orderBy,
	})
	if err != nil {
		return nil, err
	}
	return res.Rows()
}

// SaveData writes one record and returns the server's status message.
func SaveData(ctx context.Context, c Caller, userName string, rec *Record) (string, error) {
	res, err := c.Call(ctx, ProcSaveData, saveDataPayload{
		UserName:   userName,
		DModelData: rec.Encode(),
	})
	if err != nil {
		return "", err
	}
	return res.Message()
}

// DeleteData removes the rows of a data model matching where.
func DeleteData(ctx context.Context, c Caller, userName, model string, where query.Predicate) (string, error) {
	res, err := c.Call(ctx, ProcDeleteData, deleteDataPayload{
		UserName:       userName,
		DataModelName:  model,
		WhereCondition: where.String(),
	})
	if err != nil {
		return "", err
	}
	return res.Message()
}

// GetDataFromQuery runs a server-side query and returns its rows.
func GetDataFromQuery(ctx context.Context, c Caller, sql string) ([]Row, error) {
	res, err := c.Call(ctx, ProcGetDataFromQuery, queryPayload{SQLQuery: sql})
	if err != nil {
		return nil, err
	}
	return res.Rows()
}

type Field struct {
	Name  string
	Value any
}

// Record is a data-model entity in write form: model name plus ordered fields.
type Record struct {
	Model  string
	Fields []Field
}

func NewRecord(model string) *Record {
	return &Record{Model: model}
}

func (r *Record) Set(name string, value any) *Record {
	r.Fields = append(r.Fields, Field{Name: name, Value: value})
	return r
}

// Encode renders the record as DModelData: <Model><FIELD>value</FIELD>...</Model>.
func (r *Record) Encode() string {
	var b strings.Builder
	b.WriteString("<" + r.Model + ">")
	for _, f := range r.Fields {
		b.WriteString("<" + f.Name + ">")
		_ = xml.EscapeText(&b, []byte(formatValue(f.Value)))
		b.WriteString("</" + f.Name + ">")
	}
	b.WriteString("</" + r.Model + ">")
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.Format(EntryDateLayout)
	default:
		return fmt.Sprint(val)
	}
}
