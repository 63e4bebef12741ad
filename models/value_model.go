package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CellKind enumerates the value shapes an imported cell can take.
type CellKind int

const (
	CellNull CellKind = iota
	CellText
	CellInteger
	CellReal
	CellBool
)

// CellValue is the variant type for one imported or edited cell. Keeping
// the shape closed (null | text | integer | real | boolean) keeps type
// inference and the insert path statically checkable.
type CellValue struct {
	Kind CellKind
	Text string
	Int  int64
	Real float64
	Bool bool
}

func TextCell(s string) CellValue { return CellValue{Kind: CellText, Text: s} }
func IntegerCell(n int64) CellValue { return CellValue{Kind: CellInteger, Int: n} }
func RealCell(f float64) CellValue { return CellValue{Kind: CellReal, Real: f} }
func BoolCell(b bool) CellValue { return CellValue{Kind: CellBool, Bool: b} }

func (v CellValue) IsNull() bool { return v.Kind == CellNull }

func (v *CellValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*v = CellValue{}
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = TextCell(t)
	case bool:
		*v = BoolCell(t)
	case float64:
		// JSON numbers arrive as float64; keep integral values integral
		if t == float64(int64(t)) && !strings.ContainsAny(trimmed, ".eE") {
			*v = IntegerCell(int64(t))
		} else {
			*v = RealCell(t)
		}
	default:
		return fmt.Errorf("unsupported cell value %s", trimmed)
	}
	return nil
}

func (v CellValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case CellText:
		return json.Marshal(v.Text)
	case CellInteger:
		return json.Marshal(v.Int)
	case CellReal:
		return json.Marshal(v.Real)
	case CellBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

// Arg converts the value into a driver argument for a column of the
// given storage type. Booleans land as 0/1 on INTEGER columns.
func (v CellValue) Arg(columnType string) any {
	switch v.Kind {
	case CellNull:
		return nil
	case CellText:
		return v.Text
	case CellInteger:
		return v.Int
	case CellReal:
		return v.Real
	case CellBool:
		if columnType == "INTEGER" {
			if v.Bool {
				return int64(1)
			}
			return int64(0)
		}
		return v.Bool
	}
	return nil
}

// SniffCell converts a raw text field (e.g. a CSV cell) into the most
// specific value shape it parses as. Empty text is null.
func SniffCell(raw string) CellValue {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CellValue{}
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return IntegerCell(n)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return RealCell(f)
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return BoolCell(true)
	case "false":
		return BoolCell(false)
	}
	return TextCell(raw)
}
