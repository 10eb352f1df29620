package spreadsheet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FixedClock pins NOW and TODAY for deterministic tests
type FixedClock struct {
	Time time.Time
}

func (c *FixedClock) Now() time.Time {
	return c.Time
}

// FixedRandom returns a constant value from RAND
type FixedRandom struct {
	Value float64
}

func (r *FixedRandom) Float64() float64 {
	return r.Value
}

func builtinRegistry(t *testing.T) *FunctionRegistry {
	t.Helper()
	r := NewFunctionRegistry()
	require.NoError(t, NewBuiltInFunctions().RegisterBuiltins(r))
	return r
}

func callBuiltin(t *testing.T, r *FunctionRegistry, name string, args ...Primitive) Primitive {
	t.Helper()
	result, err := r.Call(name, args)
	require.NoError(t, err)
	return result
}

func TestBuiltinMath(t *testing.T) {
	r := builtinRegistry(t)

	assert.Equal(t, 6.0, callBuiltin(t, r, "SUM", 1.0, 2.0, 3.0))
	assert.Equal(t, 2.0, callBuiltin(t, r, "AVERAGE", 1.0, 2.0, 3.0))
	assert.Equal(t, 1.0, callBuiltin(t, r, "MIN", 3.0, 1.0, 2.0))
	assert.Equal(t, 3.0, callBuiltin(t, r, "MAX", 3.0, 1.0, 2.0))
	assert.Equal(t, 2.0, callBuiltin(t, r, "MEDIAN", 3.0, 1.0, 2.0))
	assert.Equal(t, 2.5, callBuiltin(t, r, "MEDIAN", 1.0, 2.0, 3.0, 4.0))
	assert.Equal(t, 3.0, callBuiltin(t, r, "ABS", -3.0))
	assert.Equal(t, 3.0, callBuiltin(t, r, "SQRT", 9.0))
	assert.Equal(t, 8.0, callBuiltin(t, r, "POWER", 2.0, 3.0))
	assert.Equal(t, 1.0, callBuiltin(t, r, "MOD", 10.0, 3.0))
	assert.Equal(t, 3.14, callBuiltin(t, r, "ROUND", 3.14159, 2.0))
	assert.Equal(t, 3.0, callBuiltin(t, r, "ROUND", 3.4))
	assert.Equal(t, 3.0, callBuiltin(t, r, "FLOOR", 3.9))
	assert.Equal(t, 4.0, callBuiltin(t, r, "CEILING", 3.1))
	assert.InDelta(t, 0.0, callBuiltin(t, r, "SIN", 0.0).(float64), 1e-12)
	assert.InDelta(t, 1.0, callBuiltin(t, r, "COS", 0.0).(float64), 1e-12)
	assert.InDelta(t, 0.0, callBuiltin(t, r, "TAN", 0.0).(float64), 1e-12)
	assert.InDelta(t, 3.14159265, callBuiltin(t, r, "PI").(float64), 1e-8)
}

func TestBuiltinMathErrors(t *testing.T) {
	r := builtinRegistry(t)

	result := callBuiltin(t, r, "SQRT", -1.0)
	spreadsheetErr, ok := result.(*SpreadsheetError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeNum, spreadsheetErr.ErrorCode)

	result = callBuiltin(t, r, "MOD", 10.0, 0.0)
	spreadsheetErr, ok = result.(*SpreadsheetError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeDiv0, spreadsheetErr.ErrorCode)

	result = callBuiltin(t, r, "SUM", "not a number")
	spreadsheetErr, ok = result.(*SpreadsheetError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeValue, spreadsheetErr.ErrorCode)

	// error values propagate through aggregates
	result = callBuiltin(t, r, "SUM", 1.0, NewSpreadsheetError(ErrorCodeDiv0, ""))
	spreadsheetErr, ok = result.(*SpreadsheetError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeDiv0, spreadsheetErr.ErrorCode)
}

func TestBuiltinRangeArguments(t *testing.T) {
	r := builtinRegistry(t)

	block := []Primitive{1.0, 2.0, "text", nil, 3.0}

	assert.Equal(t, 6.0, callBuiltin(t, r, "SUM", block))
	assert.Equal(t, 2.0, callBuiltin(t, r, "AVERAGE", block))
	assert.Equal(t, 3.0, callBuiltin(t, r, "COUNT", block))
	assert.Equal(t, 4.0, callBuiltin(t, r, "COUNTA", block))

	// range plus scalar
	assert.Equal(t, 16.0, callBuiltin(t, r, "SUM", block, 10.0))
}

func TestBuiltinLogical(t *testing.T) {
	r := builtinRegistry(t)

	assert.Equal(t, "yes", callBuiltin(t, r, "IF", true, "yes", "no"))
	assert.Equal(t, "no", callBuiltin(t, r, "IF", false, "yes", "no"))
	assert.Equal(t, false, callBuiltin(t, r, "IF", false, "yes"))
	assert.Equal(t, true, callBuiltin(t, r, "AND", true, 1.0, "x"))
	assert.Equal(t, false, callBuiltin(t, r, "AND", true, 0.0))
	assert.Equal(t, true, callBuiltin(t, r, "OR", false, 1.0))
	assert.Equal(t, false, callBuiltin(t, r, "OR", false, 0.0))
	assert.Equal(t, false, callBuiltin(t, r, "NOT", true))
	assert.Equal(t, true, callBuiltin(t, r, "NOT", 0.0))
}

func TestBuiltinText(t *testing.T) {
	r := builtinRegistry(t)

	assert.Equal(t, "ab1", callBuiltin(t, r, "CONCAT", "a", "b", 1.0))
	assert.Equal(t, "ab", callBuiltin(t, r, "CONCATENATE", "a", "b"))
	assert.Equal(t, "a-b", callBuiltin(t, r, "TEXTJOIN", "-", true, "a", "", "b"))
	assert.Equal(t, "a--b", callBuiltin(t, r, "TEXTJOIN", "-", false, "a", "", "b"))
	assert.Equal(t, 5.0, callBuiltin(t, r, "LEN", "hello"))
	assert.Equal(t, "he", callBuiltin(t, r, "LEFT", "hello", 2.0))
	assert.Equal(t, "h", callBuiltin(t, r, "LEFT", "hello"))
	assert.Equal(t, "lo", callBuiltin(t, r, "RIGHT", "hello", 2.0))
	assert.Equal(t, "ell", callBuiltin(t, r, "MID", "hello", 2.0, 3.0))
	assert.Equal(t, "hi", callBuiltin(t, r, "TRIM", "  hi  "))
	assert.Equal(t, "HELLO", callBuiltin(t, r, "UPPER", "hello"))
	assert.Equal(t, "hello", callBuiltin(t, r, "LOWER", "HELLO"))
	assert.Equal(t, "hXYlo", callBuiltin(t, r, "REPLACE", "hello", 2.0, 2.0, "XY"))
	assert.Equal(t, "heLLo heLLo", callBuiltin(t, r, "SUBSTITUTE", "hello hello", "ll", "LL"))
	assert.Equal(t, "hello heLLo", callBuiltin(t, r, "SUBSTITUTE", "hello hello", "ll", "LL", 2.0))
}

func TestBuiltinTextUnicode(t *testing.T) {
	r := builtinRegistry(t)

	assert.Equal(t, 4.0, callBuiltin(t, r, "LEN", "日本語x"))
	assert.Equal(t, "日本", callBuiltin(t, r, "LEFT", "日本語", 2.0))
	assert.Equal(t, "本語", callBuiltin(t, r, "MID", "日本語", 2.0, 2.0))
}

func TestBuiltinVolatile(t *testing.T) {
	clock := &FixedClock{Time: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)}
	rng := &FixedRandom{Value: 0.25}

	r := NewFunctionRegistry()
	require.NoError(t, NewBuiltInFunctionsWithCollaborators(clock, rng).RegisterBuiltins(r))

	assert.Equal(t, "2024-03-15 10:30:00", callBuiltin(t, r, "NOW"))
	assert.Equal(t, "2024-03-15", callBuiltin(t, r, "TODAY"))
	assert.Equal(t, 0.25, callBuiltin(t, r, "RAND"))

	assert.True(t, r.IsVolatile("NOW"))
	assert.True(t, r.IsVolatile("TODAY"))
	assert.True(t, r.IsVolatile("RAND"))
	assert.False(t, r.IsVolatile("SUM"))
}

func TestBuiltinRegistrationCollision(t *testing.T) {
	r := NewFunctionRegistry()
	require.NoError(t, r.Register(FunctionMetadata{Name: "SUM", MinArgs: 1, MaxArgs: -1}, identity))

	// builtins refuse to clobber an existing registration
	assert.Error(t, NewBuiltInFunctions().RegisterBuiltins(r))
}
