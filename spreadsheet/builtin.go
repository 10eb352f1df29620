package spreadsheet

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// Clock abstracts time for NOW and TODAY so tests can pin the clock
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using actual system time
type RealClock struct{}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator abstracts randomness for RAND
type RandomGenerator interface {
	Float64() float64
}

// RealRandom implements RandomGenerator using math/rand
type RealRandom struct{}

func (r *RealRandom) Float64() float64 {
	return rand.Float64()
}

// BuiltInFunctions holds the injected collaborators the volatile builtins
// need. everything else is pure.
type BuiltInFunctions struct {
	clock Clock
	rng   RandomGenerator
}

// NewBuiltInFunctions creates builtins backed by the real clock and RNG
func NewBuiltInFunctions() *BuiltInFunctions {
	return &BuiltInFunctions{
		clock: &RealClock{},
		rng:   &RealRandom{},
	}
}

// NewBuiltInFunctionsWithCollaborators creates builtins with injected
// clock and random generator for deterministic tests
func NewBuiltInFunctionsWithCollaborators(clock Clock, rng RandomGenerator) *BuiltInFunctions {
	return &BuiltInFunctions{clock: clock, rng: rng}
}

// RegisterBuiltins registers the standard function set on the registry.
// it fails only on a name collision, which means the caller registered
// its own functions first under a builtin name.
func (b *BuiltInFunctions) RegisterBuiltins(r *FunctionRegistry) error {
	type entry struct {
		meta FunctionMetadata
		fn   Function
	}

	entries := []entry{
		// math
		{FunctionMetadata{Name: "SUM", Category: "Math", Description: "Adds its arguments", MinArgs: 1, MaxArgs: -1}, fnSum},
		{FunctionMetadata{Name: "AVERAGE", Category: "Math", Description: "Arithmetic mean of its arguments", MinArgs: 1, MaxArgs: -1}, fnAverage},
		{FunctionMetadata{Name: "MIN", Category: "Math", Description: "Smallest numeric argument", MinArgs: 1, MaxArgs: -1}, fnMin},
		{FunctionMetadata{Name: "MAX", Category: "Math", Description: "Largest numeric argument", MinArgs: 1, MaxArgs: -1}, fnMax},
		{FunctionMetadata{Name: "MEDIAN", Category: "Math", Description: "Median of its numeric arguments", MinArgs: 1, MaxArgs: -1}, fnMedian},
		{FunctionMetadata{Name: "COUNT", Category: "Math", Description: "Counts numeric values", MinArgs: 1, MaxArgs: -1}, fnCount},
		{FunctionMetadata{Name: "COUNTA", Category: "Math", Description: "Counts non-empty values", MinArgs: 1, MaxArgs: -1}, fnCountA},
		{FunctionMetadata{Name: "ROUND", Category: "Math", Description: "Rounds a number to a given number of digits", MinArgs: 1, MaxArgs: 2}, fnRound},
		{FunctionMetadata{Name: "FLOOR", Category: "Math", Description: "Rounds a number down", MinArgs: 1, MaxArgs: 1}, fnFloor},
		{FunctionMetadata{Name: "CEILING", Category: "Math", Description: "Rounds a number up", MinArgs: 1, MaxArgs: 1}, fnCeiling},
		{FunctionMetadata{Name: "ABS", Category: "Math", Description: "Absolute value", MinArgs: 1, MaxArgs: 1}, fnAbs},
		{FunctionMetadata{Name: "SQRT", Category: "Math", Description: "Square root", MinArgs: 1, MaxArgs: 1}, fnSqrt},
		{FunctionMetadata{Name: "POWER", Category: "Math", Description: "Raises a number to a power", MinArgs: 2, MaxArgs: 2}, fnPower},
		{FunctionMetadata{Name: "MOD", Category: "Math", Description: "Remainder of a division", MinArgs: 2, MaxArgs: 2}, fnMod},
		{FunctionMetadata{Name: "SIN", Category: "Math", Description: "Sine of an angle in radians", MinArgs: 1, MaxArgs: 1}, fnSin},
		{FunctionMetadata{Name: "COS", Category: "Math", Description: "Cosine of an angle in radians", MinArgs: 1, MaxArgs: 1}, fnCos},
		{FunctionMetadata{Name: "TAN", Category: "Math", Description: "Tangent of an angle in radians", MinArgs: 1, MaxArgs: 1}, fnTan},
		{FunctionMetadata{Name: "PI", Category: "Math", Description: "The constant pi", MinArgs: 0, MaxArgs: 0}, fnPi},

		// logical
		{FunctionMetadata{Name: "IF", Category: "Logical", Description: "Returns one value if a condition is true and another if false", MinArgs: 2, MaxArgs: 3}, fnIf},
		{FunctionMetadata{Name: "AND", Category: "Logical", Description: "True if every argument is truthy", MinArgs: 1, MaxArgs: -1}, fnAnd},
		{FunctionMetadata{Name: "OR", Category: "Logical", Description: "True if any argument is truthy", MinArgs: 1, MaxArgs: -1}, fnOr},
		{FunctionMetadata{Name: "NOT", Category: "Logical", Description: "Negates its argument", MinArgs: 1, MaxArgs: 1}, fnNot},

		// text
		{FunctionMetadata{Name: "CONCAT", Category: "Text", Description: "Joins its arguments into one string", MinArgs: 1, MaxArgs: -1}, fnConcat},
		{FunctionMetadata{Name: "CONCATENATE", Category: "Text", Description: "Joins its arguments into one string", MinArgs: 1, MaxArgs: -1}, fnConcat},
		{FunctionMetadata{Name: "TEXTJOIN", Category: "Text", Description: "Joins values with a delimiter", MinArgs: 3, MaxArgs: -1}, fnTextJoin},
		{FunctionMetadata{Name: "LEN", Category: "Text", Description: "Length of a string", MinArgs: 1, MaxArgs: 1}, fnLen},
		{FunctionMetadata{Name: "LEFT", Category: "Text", Description: "Leftmost characters of a string", MinArgs: 1, MaxArgs: 2}, fnLeft},
		{FunctionMetadata{Name: "RIGHT", Category: "Text", Description: "Rightmost characters of a string", MinArgs: 1, MaxArgs: 2}, fnRight},
		{FunctionMetadata{Name: "MID", Category: "Text", Description: "Characters from the middle of a string", MinArgs: 3, MaxArgs: 3}, fnMid},
		{FunctionMetadata{Name: "TRIM", Category: "Text", Description: "Removes leading and trailing spaces", MinArgs: 1, MaxArgs: 1}, fnTrim},
		{FunctionMetadata{Name: "UPPER", Category: "Text", Description: "Converts text to uppercase", MinArgs: 1, MaxArgs: 1}, fnUpper},
		{FunctionMetadata{Name: "LOWER", Category: "Text", Description: "Converts text to lowercase", MinArgs: 1, MaxArgs: 1}, fnLower},
		{FunctionMetadata{Name: "REPLACE", Category: "Text", Description: "Replaces part of a string by position", MinArgs: 4, MaxArgs: 4}, fnReplace},
		{FunctionMetadata{Name: "SUBSTITUTE", Category: "Text", Description: "Replaces occurrences of a substring", MinArgs: 3, MaxArgs: 4}, fnSubstitute},

		// volatile
		{FunctionMetadata{Name: "NOW", Category: "Date", Description: "Current date and time", MinArgs: 0, MaxArgs: 0, Volatile: true}, b.fnNow},
		{FunctionMetadata{Name: "TODAY", Category: "Date", Description: "Current date", MinArgs: 0, MaxArgs: 0, Volatile: true}, b.fnToday},
		{FunctionMetadata{Name: "RAND", Category: "Math", Description: "Random number in [0, 1)", MinArgs: 0, MaxArgs: 0, Volatile: true}, b.fnRand},
	}

	for _, e := range entries {
		if err := r.Register(e.meta, e.fn); err != nil {
			return err
		}
	}
	return nil
}

// forEachValue walks arguments with ranges flattened, visiting every
// scalar exactly once. fromRange tells the visitor whether the value came
// out of a range, since aggregates treat direct arguments more strictly.
func forEachValue(args []Primitive, visit func(value Primitive, fromRange bool) *SpreadsheetError) *SpreadsheetError {
	for _, arg := range args {
		if values, ok := arg.([]Primitive); ok {
			for _, v := range values {
				if err := visit(v, true); err != nil {
					return err
				}
			}
			continue
		}
		if err := visit(arg, false); err != nil {
			return err
		}
	}
	return nil
}

// collectNumbers gathers numeric values from arguments. error values
// propagate. direct non-numeric arguments are a #VALUE!; non-numeric
// values inside a range are skipped, matching how aggregates ignore text
// and blanks in a referenced block.
func collectNumbers(args []Primitive) ([]float64, *SpreadsheetError) {
	var nums []float64
	err := forEachValue(args, func(value Primitive, fromRange bool) *SpreadsheetError {
		if e := checkForError(value); e != nil {
			return e
		}
		if fromRange {
			switch v := value.(type) {
			case float64:
				nums = append(nums, v)
			case bool, nil, string:
				// skipped inside ranges
			}
			return nil
		}
		num, ok := toNumber(value)
		if !ok {
			return NewSpreadsheetError(ErrorCodeValue, "expected a numeric value")
		}
		nums = append(nums, num)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nums, nil
}

// singleNumber coerces the first argument to a number, propagating errors
func singleNumber(arg Primitive) (float64, *SpreadsheetError) {
	if e := checkForError(arg); e != nil {
		return 0, e
	}
	num, ok := toNumber(arg)
	if !ok {
		return 0, NewSpreadsheetError(ErrorCodeValue, "expected a numeric value")
	}
	return num, nil
}

// singleString coerces the first argument to a string, propagating errors
func singleString(arg Primitive) (string, *SpreadsheetError) {
	if e := checkForError(arg); e != nil {
		return "", e
	}
	return toString(arg), nil
}

func fnSum(args ...Primitive) (Primitive, error) {
	nums, err := collectNumbers(args)
	if err != nil {
		return err, nil
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return sum, nil
}

func fnAverage(args ...Primitive) (Primitive, error) {
	nums, err := collectNumbers(args)
	if err != nil {
		return err, nil
	}
	if len(nums) == 0 {
		return NewSpreadsheetError(ErrorCodeDiv0, "AVERAGE of no numeric values"), nil
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return sum / float64(len(nums)), nil
}

func fnMin(args ...Primitive) (Primitive, error) {
	nums, err := collectNumbers(args)
	if err != nil {
		return err, nil
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	m := nums[0]
	for _, n := range nums[1:] {
		if n < m {
			m = n
		}
	}
	return m, nil
}

func fnMax(args ...Primitive) (Primitive, error) {
	nums, err := collectNumbers(args)
	if err != nil {
		return err, nil
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	m := nums[0]
	for _, n := range nums[1:] {
		if n > m {
			m = n
		}
	}
	return m, nil
}

func fnMedian(args ...Primitive) (Primitive, error) {
	nums, err := collectNumbers(args)
	if err != nil {
		return err, nil
	}
	if len(nums) == 0 {
		return NewSpreadsheetError(ErrorCodeNum, "MEDIAN of no numeric values"), nil
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return nums[mid], nil
	}
	return (nums[mid-1] + nums[mid]) / 2, nil
}

func fnCount(args ...Primitive) (Primitive, error) {
	count := 0.0
	err := forEachValue(args, func(value Primitive, fromRange bool) *SpreadsheetError {
		if e := checkForError(value); e != nil {
			if fromRange {
				return nil // errors inside ranges are just not counted
			}
			return e
		}
		if _, ok := value.(float64); ok {
			count++
		}
		return nil
	})
	if err != nil {
		return err, nil
	}
	return count, nil
}

func fnCountA(args ...Primitive) (Primitive, error) {
	count := 0.0
	err := forEachValue(args, func(value Primitive, fromRange bool) *SpreadsheetError {
		if value != nil {
			count++
		}
		return nil
	})
	if err != nil {
		return err, nil
	}
	return count, nil
}

func fnRound(args ...Primitive) (Primitive, error) {
	num, err := singleNumber(args[0])
	if err != nil {
		return err, nil
	}
	digits := 0.0
	if len(args) > 1 {
		digits, err = singleNumber(args[1])
		if err != nil {
			return err, nil
		}
	}
	scale := math.Pow(10, math.Trunc(digits))
	return math.Round(num*scale) / scale, nil
}

func fnFloor(args ...Primitive) (Primitive, error) {
	num, err := singleNumber(args[0])
	if err != nil {
		return err, nil
	}
	return math.Floor(num), nil
}

func fnCeiling(args ...Primitive) (Primitive, error) {
	num, err := singleNumber(args[0])
	if err != nil {
		return err, nil
	}
	return math.Ceil(num), nil
}

func fnAbs(args ...Primitive) (Primitive, error) {
	num, err := singleNumber(args[0])
	if err != nil {
		return err, nil
	}
	return math.Abs(num), nil
}

func fnSqrt(args ...Primitive) (Primitive, error) {
	num, err := singleNumber(args[0])
	if err != nil {
		return err, nil
	}
	if num < 0 {
		return NewSpreadsheetError(ErrorCodeNum, "SQRT of a negative number"), nil
	}
	return math.Sqrt(num), nil
}

func fnPower(args ...Primitive) (Primitive, error) {
	base, err := singleNumber(args[0])
	if err != nil {
		return err, nil
	}
	exp, err := singleNumber(args[1])
	if err != nil {
		return err, nil
	}
	result := math.Pow(base, exp)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return NewSpreadsheetError(ErrorCodeNum, "POWER result is not representable"), nil
	}
	return result, nil
}

func fnMod(args ...Primitive) (Primitive, error) {
	num, err := singleNumber(args[0])
	if err != nil {
		return err, nil
	}
	div, err := singleNumber(args[1])
	if err != nil {
		return err, nil
	}
	if div == 0 {
		return NewSpreadsheetError(ErrorCodeDiv0, "MOD by zero"), nil
	}
	// result carries the sign of the divisor, spreadsheet convention
	result := math.Mod(num, div)
	if result != 0 && (result < 0) != (div < 0) {
		result += div
	}
	return result, nil
}

func fnSin(args ...Primitive) (Primitive, error) {
	num, err := singleNumber(args[0])
	if err != nil {
		return err, nil
	}
	return math.Sin(num), nil
}

func fnCos(args ...Primitive) (Primitive, error) {
	num, err := singleNumber(args[0])
	if err != nil {
		return err, nil
	}
	return math.Cos(num), nil
}

func fnTan(args ...Primitive) (Primitive, error) {
	num, err := singleNumber(args[0])
	if err != nil {
		return err, nil
	}
	return math.Tan(num), nil
}

func fnPi(args ...Primitive) (Primitive, error) {
	return math.Pi, nil
}

func fnIf(args ...Primitive) (Primitive, error) {
	if e := checkForError(args[0]); e != nil {
		return e, nil
	}
	if isTruthy(args[0]) {
		return args[1], nil
	}
	if len(args) > 2 {
		return args[2], nil
	}
	return false, nil
}

func fnAnd(args ...Primitive) (Primitive, error) {
	result := true
	err := forEachValue(args, func(value Primitive, fromRange bool) *SpreadsheetError {
		if e := checkForError(value); e != nil {
			return e
		}
		if !isTruthy(value) {
			result = false
		}
		return nil
	})
	if err != nil {
		return err, nil
	}
	return result, nil
}

func fnOr(args ...Primitive) (Primitive, error) {
	result := false
	err := forEachValue(args, func(value Primitive, fromRange bool) *SpreadsheetError {
		if e := checkForError(value); e != nil {
			return e
		}
		if isTruthy(value) {
			result = true
		}
		return nil
	})
	if err != nil {
		return err, nil
	}
	return result, nil
}

func fnNot(args ...Primitive) (Primitive, error) {
	if e := checkForError(args[0]); e != nil {
		return e, nil
	}
	return !isTruthy(args[0]), nil
}

func fnConcat(args ...Primitive) (Primitive, error) {
	var b strings.Builder
	err := forEachValue(args, func(value Primitive, fromRange bool) *SpreadsheetError {
		if e := checkForError(value); e != nil {
			return e
		}
		b.WriteString(toString(value))
		return nil
	})
	if err != nil {
		return err, nil
	}
	return b.String(), nil
}

func fnTextJoin(args ...Primitive) (Primitive, error) {
	delim, err := singleString(args[0])
	if err != nil {
		return err, nil
	}
	if e := checkForError(args[1]); e != nil {
		return e, nil
	}
	ignoreEmpty := isTruthy(args[1])

	var parts []string
	verr := forEachValue(args[2:], func(value Primitive, fromRange bool) *SpreadsheetError {
		if e := checkForError(value); e != nil {
			return e
		}
		s := toString(value)
		if ignoreEmpty && s == "" {
			return nil
		}
		parts = append(parts, s)
		return nil
	})
	if verr != nil {
		return verr, nil
	}
	return strings.Join(parts, delim), nil
}

func fnLen(args ...Primitive) (Primitive, error) {
	s, err := singleString(args[0])
	if err != nil {
		return err, nil
	}
	return float64(len([]rune(s))), nil
}

func fnLeft(args ...Primitive) (Primitive, error) {
	s, err := singleString(args[0])
	if err != nil {
		return err, nil
	}
	count := 1.0
	if len(args) > 1 {
		count, err = singleNumber(args[1])
		if err != nil {
			return err, nil
		}
	}
	if count < 0 {
		return NewSpreadsheetError(ErrorCodeValue, "LEFT count must not be negative"), nil
	}
	runes := []rune(s)
	n := int(count)
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[:n]), nil
}

func fnRight(args ...Primitive) (Primitive, error) {
	s, err := singleString(args[0])
	if err != nil {
		return err, nil
	}
	count := 1.0
	if len(args) > 1 {
		count, err = singleNumber(args[1])
		if err != nil {
			return err, nil
		}
	}
	if count < 0 {
		return NewSpreadsheetError(ErrorCodeValue, "RIGHT count must not be negative"), nil
	}
	runes := []rune(s)
	n := int(count)
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[len(runes)-n:]), nil
}

func fnMid(args ...Primitive) (Primitive, error) {
	s, err := singleString(args[0])
	if err != nil {
		return err, nil
	}
	start, err := singleNumber(args[1])
	if err != nil {
		return err, nil
	}
	count, err := singleNumber(args[2])
	if err != nil {
		return err, nil
	}
	if start < 1 || count < 0 {
		return NewSpreadsheetError(ErrorCodeValue, "MID start must be >= 1 and count >= 0"), nil
	}
	runes := []rune(s)
	from := int(start) - 1
	if from >= len(runes) {
		return "", nil
	}
	to := from + int(count)
	if to > len(runes) {
		to = len(runes)
	}
	return string(runes[from:to]), nil
}

func fnTrim(args ...Primitive) (Primitive, error) {
	s, err := singleString(args[0])
	if err != nil {
		return err, nil
	}
	return strings.TrimSpace(s), nil
}

func fnUpper(args ...Primitive) (Primitive, error) {
	s, err := singleString(args[0])
	if err != nil {
		return err, nil
	}
	return strings.ToUpper(s), nil
}

func fnLower(args ...Primitive) (Primitive, error) {
	s, err := singleString(args[0])
	if err != nil {
		return err, nil
	}
	return strings.ToLower(s), nil
}

func fnReplace(args ...Primitive) (Primitive, error) {
	s, err := singleString(args[0])
	if err != nil {
		return err, nil
	}
	start, err := singleNumber(args[1])
	if err != nil {
		return err, nil
	}
	count, err := singleNumber(args[2])
	if err != nil {
		return err, nil
	}
	replacement, err := singleString(args[3])
	if err != nil {
		return err, nil
	}
	if start < 1 || count < 0 {
		return NewSpreadsheetError(ErrorCodeValue, "REPLACE start must be >= 1 and count >= 0"), nil
	}
	runes := []rune(s)
	from := int(start) - 1
	if from > len(runes) {
		from = len(runes)
	}
	to := from + int(count)
	if to > len(runes) {
		to = len(runes)
	}
	return string(runes[:from]) + replacement + string(runes[to:]), nil
}

func fnSubstitute(args ...Primitive) (Primitive, error) {
	s, err := singleString(args[0])
	if err != nil {
		return err, nil
	}
	old, err := singleString(args[1])
	if err != nil {
		return err, nil
	}
	replacement, err := singleString(args[2])
	if err != nil {
		return err, nil
	}
	if old == "" {
		return s, nil
	}
	if len(args) > 3 {
		nth, nerr := singleNumber(args[3])
		if nerr != nil {
			return nerr, nil
		}
		if nth < 1 {
			return NewSpreadsheetError(ErrorCodeValue, "SUBSTITUTE instance must be >= 1"), nil
		}
		count := 0
		idx := 0
		for {
			found := strings.Index(s[idx:], old)
			if found < 0 {
				return s, nil
			}
			count++
			if count == int(nth) {
				pos := idx + found
				return s[:pos] + replacement + s[pos+len(old):], nil
			}
			idx += found + len(old)
		}
	}
	return strings.ReplaceAll(s, old, replacement), nil
}

func (b *BuiltInFunctions) fnNow(args ...Primitive) (Primitive, error) {
	return b.clock.Now().Format("2006-01-02 15:04:05"), nil
}

func (b *BuiltInFunctions) fnToday(args ...Primitive) (Primitive, error) {
	return b.clock.Now().Format("2006-01-02"), nil
}

func (b *BuiltInFunctions) fnRand(args ...Primitive) (Primitive, error) {
	return b.rng.Float64(), nil
}
