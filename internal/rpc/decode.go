package rpc

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeRows maps server rows onto structs tagged with `rpc:"COLUMN"`.
// Column names match case-insensitively and scalar types are coerced
// (numeric strings, Y/N flags).
func DecodeRows[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		var item T
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook:       flagHook,
			WeaklyTypedInput: true,
			TagName:          "rpc",
			Result:           &item,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(map[string]any(row)); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrUnexpectedShape, i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func flagHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Bool || from.Kind() != reflect.String {
		return data, nil
	}
	switch strings.ToUpper(strings.TrimSpace(data.(string))) {
	case "Y", "YES", "T", "TRUE", "1":
		return true, nil
	case "", "N", "NO", "F", "FALSE", "0":
		return false, nil
	}
	return data, nil
}
