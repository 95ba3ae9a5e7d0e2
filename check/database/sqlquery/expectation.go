package sqlquery

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Row is one result row. Values are compared after normalization, so
// Row{1} matches an int64 column holding 1 as well as a text column holding
// "1", and Row{"x"} matches a []byte "x".
type Row []any

// Expectation is the success criterion of a query probe. It is either
// AnyRows or ExactRows.
type Expectation struct {
	any  bool
	rows []Row
}

// AnyRows accepts any successful execution, whether or not it returns rows.
func AnyRows() Expectation {
	return Expectation{any: true}
}

// ExactRows accepts only results equal to rows, in order.
func ExactRows(rows ...Row) Expectation {
	normalized := make([]Row, len(rows))
	for i, row := range rows {
		normalized[i] = normalizeRow(row)
	}

	return Expectation{rows: normalized}
}

// IsAny reports whether e is AnyRows.
func (e Expectation) IsAny() bool {
	return e.any
}

// Rows returns the expected rows of an ExactRows expectation.
func (e Expectation) Rows() []Row {
	return e.rows
}

func (e Expectation) String() string {
	if e.any {
		return "any"
	}

	return FormatRows(e.rows)
}

// Matches reports whether got satisfies e.
func (e Expectation) Matches(got []Row) bool {
	if e.any {
		return true
	}
	if len(got) != len(e.rows) {
		return false
	}

	for i := range got {
		if !rowsEqual(e.rows[i], got[i]) {
			return false
		}
	}

	return true
}

// MismatchError reports a result that did not satisfy an ExactRows expectation.
type MismatchError struct {
	Want []Row
	Got  []Row
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("did not return rows matching %s, got: %s", FormatRows(e.Want), FormatRows(e.Got))
}

// FormatRows renders rows as [(1, a), (2, b)].
func FormatRows(rows []Row) string {
	var b strings.Builder

	b.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, value := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			if value == nil {
				b.WriteString("NULL")
			} else {
				fmt.Fprint(&b, value)
			}
		}
		if len(row) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	}
	b.WriteByte(']')

	return b.String()
}

func normalizeRow(row Row) Row {
	out := make(Row, len(row))
	for i, value := range row {
		out[i] = normalize(value)
	}

	return out
}

// normalize maps the many Go representations of a SQL value onto one per
// kind: int64, uint64 (only above MaxInt64), float64, string, bool, time.Time
// or nil.
func normalize(value any) any {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return normalizeUnsigned(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return normalizeUnsigned(v)
	case float32:
		return float64(v)
	case []byte:
		return string(v)
	default:
		return v
	}
}

func normalizeUnsigned(v uint64) any {
	if v > math.MaxInt64 {
		return v
	}

	return int64(v)
}

func rowsEqual(want, got Row) bool {
	if len(want) != len(got) {
		return false
	}

	for i := range want {
		if !valuesEqual(want[i], got[i]) {
			return false
		}
	}

	return true
}

func valuesEqual(want, got any) bool {
	if wantTime, ok := want.(time.Time); ok {
		gotTime, ok := got.(time.Time)

		return ok && wantTime.Equal(gotTime)
	}

	if text, ok := got.(string); ok {
		if _, isText := want.(string); !isText {
			return textEqual(want, text)
		}
	}

	return reflect.DeepEqual(want, got)
}

// textEqual compares a column received as text, as the MySQL text protocol
// and lib/pq numeric columns deliver it, with an expected number or bool.
func textEqual(want any, text string) bool {
	text = strings.TrimSpace(text)

	switch v := want.(type) {
	case int64:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n == v
		}
		f, err := strconv.ParseFloat(text, 64)

		return err == nil && f == float64(v)
	case uint64:
		n, err := strconv.ParseUint(text, 10, 64)

		return err == nil && n == v
	case float64:
		f, err := strconv.ParseFloat(text, 64)

		return err == nil && f == v
	case bool:
		b, err := strconv.ParseBool(text)

		return err == nil && b == v
	default:
		return false
	}
}
