package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"
)

// Primitive represents basic spreadsheet value types.
// types:
//   - float64: numeric values (integers are converted to float64)
//   - string: text values
//   - bool: boolean values (TRUE/FALSE)
//   - nil: empty cells
//   - []Primitive: flattened range values (consumed by aggregate functions)
//   - *SpreadsheetError: error values (#DIV/0!, #VALUE!, etc.)
type Primitive any

// ErrorCode represents standard spreadsheet error codes following
// Excel conventions
type ErrorCode uint8

const (
	ErrorCodeDiv0  ErrorCode = 1 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 2 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 3 // #REF! - invalid cell reference
	ErrorCodeName  ErrorCode = 4 // #NAME? - unrecognized function name
	ErrorCodeNum   ErrorCode = 5 // #NUM! - number too large or small to be represented
	ErrorCodeNA    ErrorCode = 6 // #N/A - not enough arguments for function
	ErrorCodeCycle ErrorCode = 7 // #CYCLE! - circular reference between cells
	ErrorCodeOther ErrorCode = 8 // #ERROR! - all other errors
)

// ErrorMapper maps error code numbers to their string representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
	ErrorCodeCycle: "#CYCLE!",
	ErrorCodeOther: "#ERROR!",
}

// errorCodeFromString maps an error display string back to its code
func errorCodeFromString(s string) (ErrorCode, bool) {
	for code, text := range ErrorMapper {
		if text == s {
			return code, true
		}
	}
	return 0, false
}

// SpreadsheetError preserves error code for display in cells
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
}

func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.ErrorCode]
}

// Code returns the display string for the error, e.g. "#DIV/0!"
func (e *SpreadsheetError) Code() string {
	return ErrorMapper[e.ErrorCode]
}

func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

// CellAddress identifies a cell by zero-based row and column
type CellAddress struct {
	Row int
	Col int
}

// RangeAddress represents a rectangular span of cells
type RangeAddress struct {
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

// Normalize returns the range with corners ordered so start <= end on
// both axes
func (r RangeAddress) Normalize() RangeAddress {
	return RangeAddress{
		StartRow: min(r.StartRow, r.EndRow),
		StartCol: min(r.StartCol, r.EndCol),
		EndRow:   max(r.StartRow, r.EndRow),
		EndCol:   max(r.StartCol, r.EndCol),
	}
}

// Contains reports whether the cell lies within the normalized range
func (r RangeAddress) Contains(addr CellAddress) bool {
	n := r.Normalize()
	return addr.Row >= n.StartRow && addr.Row <= n.EndRow &&
		addr.Col >= n.StartCol && addr.Col <= n.EndCol
}

// columnLabel converts a zero-based column index to spreadsheet letters
// (0 -> A, 25 -> Z, 26 -> AA)
func columnLabel(col int) string {
	label := ""
	for col >= 0 {
		label = string(rune('A'+col%26)) + label
		col = col/26 - 1
	}
	return label
}

// columnIndex converts spreadsheet column letters to a zero-based index
func columnIndex(letters string) int {
	col := 0
	for i, ch := range strings.ToUpper(letters) {
		col = col*26 + int(ch-'A')
		if i < len(letters)-1 {
			col++ // account for positional notation
		}
	}
	return col
}

// parseCellRef parses cell reference text like "A1", "$B$2", "$C3" into
// zero-based column and row indices plus absolute markers per axis
func parseCellRef(text string) (col, row int, absCol, absRow bool, err error) {
	s := text
	if strings.HasPrefix(s, "$") {
		absCol = true
		s = s[1:]
	}

	// letters
	letterEnd := 0
	for i, ch := range s {
		if ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z' {
			letterEnd = i + 1
		} else {
			break
		}
	}
	if letterEnd == 0 {
		return 0, 0, false, false, fmt.Errorf("invalid cell reference: %s", text)
	}
	col = columnIndex(s[:letterEnd])
	s = s[letterEnd:]

	if strings.HasPrefix(s, "$") {
		absRow = true
		s = s[1:]
	}

	rowNum, perr := strconv.ParseInt(s, 10, 32)
	if perr != nil || rowNum < 1 {
		return 0, 0, false, false, fmt.Errorf("invalid cell reference: %s", text)
	}
	row = int(rowNum - 1) // convert to 0-based

	return col, row, absCol, absRow, nil
}

// formatCellRef renders a cell reference back to text, preserving
// absolute markers
func formatCellRef(col, row int, absCol, absRow bool) string {
	var b strings.Builder
	if absCol {
		b.WriteByte('$')
	}
	b.WriteString(columnLabel(col))
	if absRow {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(row + 1))
	return b.String()
}

// ParseRef parses plain cell reference text like "B3" or "$B$3" into
// zero-based column and row, ignoring absolute markers
func ParseRef(text string) (col, row int, err error) {
	col, row, _, _, err = parseCellRef(text)
	return col, row, err
}

// FormatRef renders a zero-based column and row as reference text
func FormatRef(col, row int) string {
	return formatCellRef(col, row, false, false)
}

// ColumnLabel converts a zero-based column index to spreadsheet letters
func ColumnLabel(col int) string {
	return columnLabel(col)
}

// checkForError returns the error if value is a *SpreadsheetError, nil otherwise
func checkForError(value Primitive) *SpreadsheetError {
	if err, ok := value.(*SpreadsheetError); ok {
		return err
	}
	return nil
}

// toNumber converts value to number, returning ok=false if conversion fails
func toNumber(value Primitive) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		num, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return num, true
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

// toString converts value to string
func toString(value Primitive) string {
	switch v := value.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case *SpreadsheetError:
		return v.Code()
	default:
		return fmt.Sprint(value)
	}
}

// isTruthy checks if value is truthy
func isTruthy(value Primitive) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v != ""
	case nil:
		return false
	default:
		return true
	}
}

// comparePrimitives compares two primitive values. returns -1 if left < right,
// 0 if equal, 1 if left > right, -2 if not comparable
func comparePrimitives(left, right Primitive) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}

	// try numeric comparison first
	leftNum, leftIsNum := toNumber(left)
	rightNum, rightIsNum := toNumber(right)

	if leftIsNum && rightIsNum {
		if leftNum < rightNum {
			return -1
		} else if leftNum > rightNum {
			return 1
		}
		return 0
	}

	// try boolean comparison
	leftBool, leftIsBool := left.(bool)
	rightBool, rightIsBool := right.(bool)

	if leftIsBool && rightIsBool {
		if leftBool == rightBool {
			return 0
		} else if !leftBool && rightBool {
			return -1
		}
		return 1
	}

	// string comparison
	leftStr := toString(left)
	rightStr := toString(right)

	if leftStr < rightStr {
		return -1
	} else if leftStr > rightStr {
		return 1
	}
	return 0
}
