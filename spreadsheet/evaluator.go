package spreadsheet

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("spreadsheet.evaluator")

// astCacheSize bounds the parsed formula cache. parsing is cheap enough
// that eviction only costs a reparse.
const astCacheSize = 4096

// EvalContext tracks one top-level evaluation. the stack carries the
// chain of cells currently being resolved for cycle detection; the set
// makes membership checks O(1) while the slice preserves order for
// logging the cycle path.
type EvalContext struct {
	stack    []CellAddress
	onStack  mapset.Set
	volatile bool
}

func newEvalContext() *EvalContext {
	return &EvalContext{
		onStack: mapset.NewThreadUnsafeSet(),
	}
}

func (c *EvalContext) contains(addr CellAddress) bool {
	return c.onStack.Contains(addr)
}

func (c *EvalContext) push(addr CellAddress) {
	c.stack = append(c.stack, addr)
	c.onStack.Add(addr)
}

func (c *EvalContext) pop() {
	last := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	c.onStack.Remove(last)
}

// path renders the current resolution chain for diagnostics
func (c *EvalContext) path() string {
	parts := make([]string, len(c.stack))
	for i, addr := range c.stack {
		parts[i] = formatCellRef(addr.Col, addr.Row, false, false)
	}
	return strings.Join(parts, " -> ")
}

// Evaluator resolves cell values against a Grid. parsed formulas are
// kept in an LRU cache keyed by raw text, which survives edits because
// the same text always parses to the same tree. computed values are
// cached per cell and dropped wholesale on any grid edit.
type Evaluator struct {
	grid   Grid
	funcs  *FunctionRegistry
	asts   *lru.Cache
	values map[CellAddress]Primitive
}

// NewEvaluator creates an evaluator over the given grid and registry.
// both are required; a nil collaborator is a programming error and
// panics immediately rather than at first use. if the grid exposes an
// edit hook the evaluator wires cache invalidation to it.
func NewEvaluator(grid Grid, funcs *FunctionRegistry) *Evaluator {
	if grid == nil {
		panic("spreadsheet: NewEvaluator requires a grid")
	}
	if funcs == nil {
		panic("spreadsheet: NewEvaluator requires a function registry")
	}

	asts, err := lru.New(astCacheSize)
	if err != nil {
		panic(err)
	}

	e := &Evaluator{
		grid:   grid,
		funcs:  funcs,
		asts:   asts,
		values: make(map[CellAddress]Primitive),
	}

	if editable, ok := grid.(interface{ SetOnEdit(func()) }); ok {
		editable.SetOnEdit(e.Invalidate)
	}

	return e
}

// Invalidate drops every cached cell value. called on any grid edit:
// coarse, but correct, and recomputation is bounded by sheet size.
func (e *Evaluator) Invalidate() {
	e.values = make(map[CellAddress]Primitive)
}

// CellValue resolves the value of one cell, computing and caching any
// cells it depends on along the way
func (e *Evaluator) CellValue(row, col int) Primitive {
	return e.resolveCell(CellAddress{Row: row, Col: col}, newEvalContext())
}

// EvaluateFormula evaluates standalone formula text (with its leading
// '=') against the grid without binding it to a cell
func (e *Evaluator) EvaluateFormula(text string) Primitive {
	node := e.parse(text)
	return errToValue(node.Eval(e, newEvalContext()))
}

// DisplayValue resolves a cell and renders it the way a grid cell would
// show it, with errors as their codes
func (e *Evaluator) DisplayValue(row, col int) string {
	return toString(e.CellValue(row, col))
}

// resolveCell resolves one cell within an ongoing evaluation. this is
// where cycle detection and value caching live.
func (e *Evaluator) resolveCell(addr CellAddress, ctx *EvalContext) Primitive {
	if ctx.contains(addr) {
		log.Warningf("circular reference: %s -> %s", ctx.path(), formatCellRef(addr.Col, addr.Row, false, false))
		return NewSpreadsheetError(ErrorCodeCycle, "circular reference involving "+formatCellRef(addr.Col, addr.Row, false, false))
	}

	if cached, ok := e.values[addr]; ok {
		return cached
	}

	raw, ok := e.grid.CellRaw(addr.Row, addr.Col)
	if !ok {
		return nil
	}

	ctx.push(addr)
	defer ctx.pop()

	if !strings.HasPrefix(raw, "=") {
		value := sniffLiteral(raw)
		e.values[addr] = value
		return value
	}

	node := e.parse(raw)

	// a cell is volatile if its own tree calls a volatile function or if
	// anything it resolved underneath did. volatile values never enter
	// the cache.
	outerVolatile := ctx.volatile
	ctx.volatile = false

	value := errToValue(node.Eval(e, ctx))

	cellVolatile := ctx.volatile || containsVolatile(node, e.funcs)
	ctx.volatile = outerVolatile || cellVolatile

	if !cellVolatile {
		e.values[addr] = value
	}

	return value
}

// parse returns the AST for formula text, consulting the LRU cache first
func (e *Evaluator) parse(raw string) ASTNode {
	if cached, ok := e.asts.Get(raw); ok {
		return cached.(ASTNode)
	}
	node := ParseFormula(raw)
	e.asts.Add(raw, node)
	return node
}

// callFunction dispatches a function call through the registry. a
// panicking function is contained and surfaces as #VALUE! instead of
// tearing down the evaluation.
func (e *Evaluator) callFunction(name string, args []Primitive) (result Primitive, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("function %s panicked: %v", name, r)
			result = NewSpreadsheetError(ErrorCodeValue, fmt.Sprintf("function %s failed", strings.ToUpper(name)))
			err = nil
		}
	}()

	return e.funcs.Call(name, args)
}

// EnumerableGrid is a Grid that can list its populated cells, which
// full recalculation needs
type EnumerableGrid interface {
	Grid
	Cells() map[CellAddress]string
}

// RecalculateAll resolves every populated cell and returns the computed
// values. the context is checked between cells so a huge sheet can be
// cancelled; already computed values stay cached.
func (e *Evaluator) RecalculateAll(ctx context.Context) (map[CellAddress]Primitive, error) {
	enumerable, ok := e.grid.(EnumerableGrid)
	if !ok {
		return nil, fmt.Errorf("grid does not support enumeration")
	}

	results := make(map[CellAddress]Primitive)
	for addr := range enumerable.Cells() {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results[addr] = e.resolveCell(addr, newEvalContext())
	}
	return results, nil
}

// sniffLiteral interprets non-formula cell text as a number, boolean,
// or plain string, using the specialized lexers so literal syntax stays
// identical inside and outside formulas
func sniffLiteral(raw string) Primitive {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if tokens, err := NewLexerForNumber(trimmed).Tokenize(); err == nil {
		sign := 1.0
		idx := 0
		if tokens[idx].Type == TokenUnaryPrefixOp {
			if tokens[idx].Value == "-" {
				sign = -1.0
			}
			idx++
		}
		if idx < len(tokens)-1 && tokens[idx].Type == TokenNumber && tokens[idx+1].Type == TokenEOF {
			if num, perr := strconv.ParseFloat(tokens[idx].Value, 64); perr == nil {
				return sign * num
			}
		}
	}

	if tokens, err := NewLexerForBoolean(trimmed).Tokenize(); err == nil {
		if len(tokens) == 2 && tokens[0].Type == TokenBoolean {
			return tokens[0].Value == "TRUE"
		}
	}

	return raw
}
