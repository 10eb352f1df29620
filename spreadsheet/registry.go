package spreadsheet

import (
	"fmt"
	"sort"
	"strings"
)

// Function is the signature every registered spreadsheet function
// implements. arguments arrive already evaluated; range arguments arrive
// as []Primitive. a function may return a *SpreadsheetError as its value
// or as its error, both surface the same way in a cell.
type Function func(args ...Primitive) (Primitive, error)

// FunctionMetadata describes a registered function for arity checking
// and catalog listings
type FunctionMetadata struct {
	Name        string
	Category    string
	Description string
	MinArgs     int
	MaxArgs     int // -1 means variadic
	Volatile    bool
}

type registeredFunction struct {
	meta FunctionMetadata
	fn   Function
}

// FunctionRegistry maps case-insensitive function names to
// implementations. callers register domain functions next to the
// builtins; name collisions are rejected rather than silently replaced.
type FunctionRegistry struct {
	functions map[string]registeredFunction
}

// NewFunctionRegistry creates an empty registry
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]registeredFunction),
	}
}

// Register adds a function under its metadata name. registering a name
// that already exists (case-insensitively) is an error.
func (r *FunctionRegistry) Register(meta FunctionMetadata, fn Function) error {
	if meta.Name == "" {
		return fmt.Errorf("function name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("function %s has no implementation", meta.Name)
	}
	key := strings.ToUpper(meta.Name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("function %s is already registered", key)
	}
	meta.Name = key
	r.functions[key] = registeredFunction{meta: meta, fn: fn}
	return nil
}

// MustRegister registers a function and panics on failure. intended for
// static builtin tables where a collision is a programming error.
func (r *FunctionRegistry) MustRegister(meta FunctionMetadata, fn Function) {
	if err := r.Register(meta, fn); err != nil {
		panic(err)
	}
}

// Has reports whether a function with the given name is registered
func (r *FunctionRegistry) Has(name string) bool {
	_, ok := r.functions[strings.ToUpper(name)]
	return ok
}

// Lookup returns the metadata for a registered function
func (r *FunctionRegistry) Lookup(name string) (FunctionMetadata, bool) {
	reg, ok := r.functions[strings.ToUpper(name)]
	if !ok {
		return FunctionMetadata{}, false
	}
	return reg.meta, true
}

// IsVolatile reports whether the named function is registered and volatile.
// unknown names are not volatile.
func (r *FunctionRegistry) IsVolatile(name string) bool {
	reg, ok := r.functions[strings.ToUpper(name)]
	return ok && reg.meta.Volatile
}

// Call invokes the named function. unknown names yield #NAME?, arity
// violations yield #N/A, and both come back as error values rather than
// Go errors so they propagate through the expression.
func (r *FunctionRegistry) Call(name string, args []Primitive) (Primitive, error) {
	reg, ok := r.functions[strings.ToUpper(name)]
	if !ok {
		return NewSpreadsheetError(ErrorCodeName, "unknown function: "+strings.ToUpper(name)), nil
	}

	// a range argument counts as one position even when empty
	if len(args) < reg.meta.MinArgs {
		return NewSpreadsheetError(ErrorCodeNA, fmt.Sprintf("%s requires at least %d argument(s)", reg.meta.Name, reg.meta.MinArgs)), nil
	}
	if reg.meta.MaxArgs >= 0 && len(args) > reg.meta.MaxArgs {
		return NewSpreadsheetError(ErrorCodeNA, fmt.Sprintf("%s accepts at most %d argument(s)", reg.meta.Name, reg.meta.MaxArgs)), nil
	}

	return reg.fn(args...)
}

// AllMetadata returns metadata for every registered function sorted by name
func (r *FunctionRegistry) AllMetadata() []FunctionMetadata {
	out := make([]FunctionMetadata, 0, len(r.functions))
	for _, reg := range r.functions {
		out = append(out, reg.meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
