package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NodePosition locates a node in the source formula for error reporting
type NodePosition struct {
	Start int
	End   int
}

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// ASTNode is the closed node set for parsed formulas. the tree enables
// dependency extraction, reference rewriting, and volatile function
// detection through traversal rather than string manipulation.
// String() renders canonical formula text (without the '=' prefix) such
// that reparsing yields a structurally identical tree.
type ASTNode interface {
	Eval(e *Evaluator, ctx *EvalContext) (Primitive, error)
	Position() NodePosition
	String() string
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value float64
	Pos   NodePosition
}

func (n *NumberNode) Eval(e *Evaluator, ctx *EvalContext) (Primitive, error) {
	return n.Value, nil
}

func (n *NumberNode) Position() NodePosition { return n.Pos }

func (n *NumberNode) String() string {
	// format number without unnecessary decimals
	if n.Value == float64(int64(n.Value)) && math.Abs(n.Value) < 1e15 {
		return strconv.FormatInt(int64(n.Value), 10)
	}
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

// StringNode represents a string literal
type StringNode struct {
	Value string
	Pos   NodePosition
}

func (n *StringNode) Eval(e *Evaluator, ctx *EvalContext) (Primitive, error) {
	return n.Value, nil
}

func (n *StringNode) Position() NodePosition { return n.Pos }

func (n *StringNode) String() string {
	escaped := strings.ReplaceAll(n.Value, "\"", "\"\"")
	return "\"" + escaped + "\""
}

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value bool
	Pos   NodePosition
}

func (n *BooleanNode) Eval(e *Evaluator, ctx *EvalContext) (Primitive, error) {
	return n.Value, nil
}

func (n *BooleanNode) Position() NodePosition { return n.Pos }

func (n *BooleanNode) String() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// CellRefNode represents a cell reference with per-axis absolute markers
type CellRefNode struct {
	Row    int
	Col    int
	AbsRow bool
	AbsCol bool
	Pos    NodePosition
}

// Address returns the referenced cell address
func (n *CellRefNode) Address() CellAddress {
	return CellAddress{Row: n.Row, Col: n.Col}
}

func (n *CellRefNode) Eval(e *Evaluator, ctx *EvalContext) (Primitive, error) {
	return e.resolveCell(n.Address(), ctx), nil
}

func (n *CellRefNode) Position() NodePosition { return n.Pos }

func (n *CellRefNode) String() string {
	return formatCellRef(n.Col, n.Row, n.AbsCol, n.AbsRow)
}

// RangeRefNode represents a rectangular range reference
type RangeRefNode struct {
	Start CellRefNode
	End   CellRefNode
	Pos   NodePosition
}

// Bounds returns the normalized range address
func (n *RangeRefNode) Bounds() RangeAddress {
	return RangeAddress{
		StartRow: n.Start.Row,
		StartCol: n.Start.Col,
		EndRow:   n.End.Row,
		EndCol:   n.End.Col,
	}.Normalize()
}

// Eval resolves every cell of the normalized range and returns the values
// flattened in row-major order. only aggregate functions consume this.
func (n *RangeRefNode) Eval(e *Evaluator, ctx *EvalContext) (Primitive, error) {
	b := n.Bounds()
	values := make([]Primitive, 0, (b.EndRow-b.StartRow+1)*(b.EndCol-b.StartCol+1))
	for row := b.StartRow; row <= b.EndRow; row++ {
		for col := b.StartCol; col <= b.EndCol; col++ {
			values = append(values, e.resolveCell(CellAddress{Row: row, Col: col}, ctx))
		}
	}
	return values, nil
}

func (n *RangeRefNode) Position() NodePosition { return n.Pos }

func (n *RangeRefNode) String() string {
	return n.Start.String() + ":" + n.End.String()
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op    BinaryOp
	Left  ASTNode
	Right ASTNode
	Pos   NodePosition
}

func (n *BinaryOpNode) Eval(e *Evaluator, ctx *EvalContext) (Primitive, error) {
	// evaluate both operands; evaluation errors become error values so
	// they propagate like any other value
	leftVal := errToValue(n.Left.Eval(e, ctx))
	rightVal := errToValue(n.Right.Eval(e, ctx))

	// propagate errors
	if err := checkForError(leftVal); err != nil {
		return err, nil
	}
	if err := checkForError(rightVal); err != nil {
		return err, nil
	}

	switch n.Op {
	case BinOpAdd, BinOpSubtract, BinOpMultiply, BinOpDivide, BinOpPower:
		leftNum, leftOk := toNumber(leftVal)
		rightNum, rightOk := toNumber(rightVal)
		if !leftOk || !rightOk {
			return nil, NewSpreadsheetError(ErrorCodeValue, "arithmetic requires numeric values")
		}
		switch n.Op {
		case BinOpAdd:
			return leftNum + rightNum, nil
		case BinOpSubtract:
			return leftNum - rightNum, nil
		case BinOpMultiply:
			return leftNum * rightNum, nil
		case BinOpDivide:
			if rightNum == 0 {
				return nil, NewSpreadsheetError(ErrorCodeDiv0, "division by zero")
			}
			return leftNum / rightNum, nil
		case BinOpPower:
			return math.Pow(leftNum, rightNum), nil
		}

	case BinOpConcat:
		return toString(leftVal) + toString(rightVal), nil

	case BinOpEqual:
		return comparePrimitives(leftVal, rightVal) == 0, nil

	case BinOpNotEqual:
		return comparePrimitives(leftVal, rightVal) != 0, nil

	case BinOpLess, BinOpLessEqual, BinOpGreater, BinOpGreaterEqual:
		cmp := comparePrimitives(leftVal, rightVal)
		if cmp == -2 {
			return nil, NewSpreadsheetError(ErrorCodeValue, "cannot compare these values")
		}
		switch n.Op {
		case BinOpLess:
			return cmp < 0, nil
		case BinOpLessEqual:
			return cmp <= 0, nil
		case BinOpGreater:
			return cmp > 0, nil
		case BinOpGreaterEqual:
			return cmp >= 0, nil
		}
	}

	return nil, NewSpreadsheetError(ErrorCodeValue, "unknown operator")
}

func (n *BinaryOpNode) Position() NodePosition { return n.Pos }

func (n *BinaryOpNode) String() string {
	opStr := ""
	switch n.Op {
	case BinOpAdd:
		opStr = "+"
	case BinOpSubtract:
		opStr = "-"
	case BinOpMultiply:
		opStr = "*"
	case BinOpDivide:
		opStr = "/"
	case BinOpPower:
		opStr = "^"
	case BinOpConcat:
		opStr = "&"
	case BinOpEqual:
		opStr = "="
	case BinOpNotEqual:
		opStr = "<>"
	case BinOpLess:
		opStr = "<"
	case BinOpLessEqual:
		opStr = "<="
	case BinOpGreater:
		opStr = ">"
	case BinOpGreaterEqual:
		opStr = ">="
	}
	return fmt.Sprintf("(%s%s%s)", n.Left.String(), opStr, n.Right.String())
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op      UnaryOp
	Operand ASTNode
	Pos     NodePosition
}

func (n *UnaryOpNode) Eval(e *Evaluator, ctx *EvalContext) (Primitive, error) {
	val := errToValue(n.Operand.Eval(e, ctx))
	if err := checkForError(val); err != nil {
		return err, nil
	}

	num, ok := toNumber(val)
	if !ok {
		return nil, NewSpreadsheetError(ErrorCodeValue, "unary operator requires a numeric value")
	}

	switch n.Op {
	case UnaryOpPlus:
		return num, nil
	case UnaryOpMinus:
		return -num, nil
	case UnaryOpPercent:
		return num / 100.0, nil
	default:
		return nil, NewSpreadsheetError(ErrorCodeValue, "unknown unary operator")
	}
}

func (n *UnaryOpNode) Position() NodePosition { return n.Pos }

func (n *UnaryOpNode) String() string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.String()
	case UnaryOpPercent:
		return "(" + n.Operand.String() + "%)"
	default:
		return "+" + n.Operand.String()
	}
}

// FunctionCallNode represents a function call
type FunctionCallNode struct {
	Name string
	Args []ASTNode
	Pos  NodePosition
}

func (n *FunctionCallNode) Eval(e *Evaluator, ctx *EvalContext) (Primitive, error) {
	// evaluate arguments. error values are passed through to the function,
	// which decides whether to propagate or count them
	args := make([]Primitive, len(n.Args))
	for i, argNode := range n.Args {
		args[i] = errToValue(argNode.Eval(e, ctx))
	}

	return e.callFunction(n.Name, args)
}

func (n *FunctionCallNode) Position() NodePosition { return n.Pos }

func (n *FunctionCallNode) String() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return n.Name + "(" + strings.Join(args, ",") + ")"
}

// ErrorNode represents a malformed sub-expression. the parse survives it,
// and evaluation yields the bound error code, so one bad argument never
// stops the rest of the sheet from evaluating.
type ErrorNode struct {
	Code   ErrorCode
	Reason string
	Pos    NodePosition
}

func (n *ErrorNode) Eval(e *Evaluator, ctx *EvalContext) (Primitive, error) {
	return NewSpreadsheetError(n.Code, n.Reason), nil
}

func (n *ErrorNode) Position() NodePosition { return n.Pos }

func (n *ErrorNode) String() string {
	return ErrorMapper[n.Code]
}

// errToValue folds an (value, error) pair into a single Primitive, turning
// evaluation errors into error values
func errToValue(val Primitive, err error) Primitive {
	if err != nil {
		if spreadsheetErr, ok := err.(*SpreadsheetError); ok {
			return spreadsheetErr
		}
		return NewSpreadsheetError(ErrorCodeValue, err.Error())
	}
	return val
}

// containsVolatile reports whether the tree calls any function marked
// volatile in the registry. volatile results are never cached.
func containsVolatile(node ASTNode, funcs *FunctionRegistry) bool {
	switch n := node.(type) {
	case *FunctionCallNode:
		if funcs.IsVolatile(n.Name) {
			return true
		}
		for _, arg := range n.Args {
			if containsVolatile(arg, funcs) {
				return true
			}
		}
	case *BinaryOpNode:
		return containsVolatile(n.Left, funcs) || containsVolatile(n.Right, funcs)
	case *UnaryOpNode:
		return containsVolatile(n.Operand, funcs)
	}
	return false
}
