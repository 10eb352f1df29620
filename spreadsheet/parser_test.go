package spreadsheet

import (
	"testing"
)

func TestParseStructure(t *testing.T) {
	node := ParseFormula("=1+2*3")

	bin, ok := node.(*BinaryOpNode)
	if !ok {
		t.Fatalf("expected BinaryOpNode, got %T", node)
	}
	if bin.Op != BinOpAdd {
		t.Errorf("root op = %d, want add", bin.Op)
	}

	right, ok := bin.Right.(*BinaryOpNode)
	if !ok {
		t.Fatalf("expected BinaryOpNode on the right, got %T", bin.Right)
	}
	if right.Op != BinOpMultiply {
		t.Errorf("right op = %d, want multiply; precedence is wrong", right.Op)
	}
}

func TestParsePrecedence(t *testing.T) {
	// the canonical rendering parenthesizes every binary node, which
	// exposes the tree shape directly
	tests := []struct {
		formula string
		want    string
	}{
		{"=1+2*3", "(1+(2*3))"},
		{"=1*2+3", "((1*2)+3)"},
		{"=(1+2)*3", "((1+2)*3)"},
		{"=2^3^2", "(2^(3^2))"}, // right-associative
		{"=1-2-3", "((1-2)-3)"}, // left-associative
		{"=8/4/2", "((8/4)/2)"},
		{"=1+2&\"x\"", "((1+2)&\"x\")"},
		{"=1&2=3", "((1&2)=3)"},
		{"=A1>2+3", "(A1>(2+3))"},
		{"=-2^2", "(-2^2)"}, // unary binds tighter, (-2)^2 = 4
		{"=50%", "(50%)"},
		{"=50%*2", "((50%)*2)"},
	}

	for _, tt := range tests {
		node := ParseFormula(tt.formula)
		if got := node.String(); got != tt.want {
			t.Errorf("ParseFormula(%q).String() = %q, want %q", tt.formula, got, tt.want)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	formulas := []string{
		"=1+2*3",
		"=(1+2)*3",
		"=-A1",
		"=$A$1+B2",
		"=A1:B10",
		"=SUM(A1:A10,5)",
		"=IF(A1>2,\"yes\",\"no\")",
		"=\"a\"&\"b\"",
		"=\"quote \"\" inside\"",
		"=TRUE",
		"=2^3^2",
		"=50%",
		"=PI()",
		"=#REF!",
	}

	for _, formula := range formulas {
		first := ParseFormula(formula).String()
		second := ParseFormula("=" + first).String()
		if first != second {
			t.Errorf("round trip of %q: %q reparsed to %q", formula, first, second)
		}
	}
}

func TestParseCellReferences(t *testing.T) {
	tests := []struct {
		formula string
		row     int
		col     int
		absRow  bool
		absCol  bool
	}{
		{"=A1", 0, 0, false, false},
		{"=B3", 2, 1, false, false},
		{"=$A$1", 0, 0, true, true},
		{"=$C2", 1, 2, false, true},
		{"=D$5", 4, 3, true, false},
		{"=AA10", 9, 26, false, false},
		{"=a1", 0, 0, false, false},
	}

	for _, tt := range tests {
		node := ParseFormula(tt.formula)
		ref, ok := node.(*CellRefNode)
		if !ok {
			t.Errorf("ParseFormula(%q) = %T, want CellRefNode", tt.formula, node)
			continue
		}
		if ref.Row != tt.row || ref.Col != tt.col || ref.AbsRow != tt.absRow || ref.AbsCol != tt.absCol {
			t.Errorf("ParseFormula(%q) = row %d col %d absRow %v absCol %v, want row %d col %d absRow %v absCol %v",
				tt.formula, ref.Row, ref.Col, ref.AbsRow, ref.AbsCol, tt.row, tt.col, tt.absRow, tt.absCol)
		}
	}
}

func TestParseRangeNormalization(t *testing.T) {
	node := ParseFormula("=B2:A1")
	rng, ok := node.(*RangeRefNode)
	if !ok {
		t.Fatalf("expected RangeRefNode, got %T", node)
	}
	b := rng.Bounds()
	if b.StartRow != 0 || b.StartCol != 0 || b.EndRow != 1 || b.EndCol != 1 {
		t.Errorf("Bounds() = %+v, want normalized 0,0..1,1", b)
	}
}

func TestParseMalformedYieldsErrorNode(t *testing.T) {
	tests := []struct {
		formula string
		code    ErrorCode
	}{
		{"", ErrorCodeValue},
		{"1+2", ErrorCodeValue},     // missing equals prefix
		{"=1+", ErrorCodeValue},     // dangling operator
		{"=foo", ErrorCodeName},     // bare identifier
		{"=(1+2", ErrorCodeValue},   // unbalanced parens (lexer)
		{"=\"abc", ErrorCodeValue},  // unclosed string (lexer)
		{"=#VALUE!", ErrorCodeValue},
	}

	for _, tt := range tests {
		node := ParseFormula(tt.formula)
		errNode := findErrorNode(node)
		if errNode == nil {
			t.Errorf("ParseFormula(%q) produced no ErrorNode (got %T)", tt.formula, node)
			continue
		}
		if errNode.Code != tt.code {
			t.Errorf("ParseFormula(%q) error code = %v, want %v (reason %q)", tt.formula, errNode.Code, tt.code, errNode.Reason)
		}
	}
}

func TestParseBadArgumentDoesNotPoisonCall(t *testing.T) {
	// the unknown identifier becomes an ErrorNode argument, but the
	// surrounding call and its other arguments still parse
	node := ParseFormula("=SUM(1,nope,3)")
	call, ok := node.(*FunctionCallNode)
	if !ok {
		t.Fatalf("expected FunctionCallNode, got %T", node)
	}
	if len(call.Args) != 3 {
		t.Fatalf("len(Args) = %d, want 3", len(call.Args))
	}
	if _, ok := call.Args[0].(*NumberNode); !ok {
		t.Errorf("arg 0 = %T, want NumberNode", call.Args[0])
	}
	if _, ok := call.Args[1].(*ErrorNode); !ok {
		t.Errorf("arg 1 = %T, want ErrorNode", call.Args[1])
	}
	if _, ok := call.Args[2].(*NumberNode); !ok {
		t.Errorf("arg 2 = %T, want NumberNode", call.Args[2])
	}
}

func TestParseNeverReturnsNil(t *testing.T) {
	inputs := []string{
		"", "=", "=+", "=)", "=,", "=SUM(", "=SUM(1,", "=1 2 3", "==", "=A1:B2:C3",
	}
	for _, input := range inputs {
		if node := ParseFormula(input); node == nil {
			t.Errorf("ParseFormula(%q) returned nil", input)
		}
	}
}

// findErrorNode returns the first ErrorNode in the tree, depth-first
func findErrorNode(node ASTNode) *ErrorNode {
	switch n := node.(type) {
	case *ErrorNode:
		return n
	case *BinaryOpNode:
		if found := findErrorNode(n.Left); found != nil {
			return found
		}
		return findErrorNode(n.Right)
	case *UnaryOpNode:
		return findErrorNode(n.Operand)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			if found := findErrorNode(arg); found != nil {
				return found
			}
		}
	}
	return nil
}
