package spreadsheet

import (
	"testing"
)

func TestAdjustRefs(t *testing.T) {
	tests := []struct {
		formula  string
		rowDelta int
		colDelta int
		want     string
	}{
		{"=A1+B2", 1, 0, "=A2+B3"},
		{"=A1+B2", 0, 1, "=B1+C2"},
		{"=A1+B2", 2, 3, "=D3+E4"},
		{"=$A$1+B2", 1, 1, "=$A$1+C3"},
		{"=$A1+B$2", 1, 1, "=$A2+C$2"},
		{"=SUM(A1:B2)", 1, 1, "=SUM(B2:C3)"},
		{"=SUM($A$1:B2)", 1, 1, "=SUM($A$1:C3)"},
		{"=A1", 0, 0, "=A1"},
		{"=1+2", 5, 5, "=1+2"}, // no references, nothing to do
	}

	for _, tt := range tests {
		if got := AdjustRefs(tt.formula, tt.rowDelta, tt.colDelta); got != tt.want {
			t.Errorf("AdjustRefs(%q, %d, %d) = %q, want %q", tt.formula, tt.rowDelta, tt.colDelta, got, tt.want)
		}
	}
}

func TestAdjustRefsOutOfBounds(t *testing.T) {
	if got := AdjustRefs("=A1+B2", -1, 0); got != "=#REF!+B1" {
		t.Errorf("AdjustRefs off the top = %q, want =#REF!+B1", got)
	}
	if got := AdjustRefs("=A1", 0, -1); got != "=#REF!" {
		t.Errorf("AdjustRefs off the left = %q, want =#REF!", got)
	}
	// an absolute reference never moves, so it never falls off
	if got := AdjustRefs("=$A$1", -5, -5); got != "=$A$1" {
		t.Errorf("AdjustRefs absolute = %q, want =$A$1", got)
	}
}

func TestAdjustRefsLeavesStringsAlone(t *testing.T) {
	formula := `=CONCAT("A1 is not a ref",A1)`
	want := `=CONCAT("A1 is not a ref",A2)`
	if got := AdjustRefs(formula, 1, 0); got != want {
		t.Errorf("AdjustRefs(%q) = %q, want %q", formula, got, want)
	}
}

func TestAdjustRefsNonFormula(t *testing.T) {
	for _, text := range []string{"hello", "123", "", "A1+B2"} {
		if got := AdjustRefs(text, 1, 1); got != text {
			t.Errorf("AdjustRefs(%q) = %q, want unchanged", text, got)
		}
	}
}

func TestAdjustForRowInsert(t *testing.T) {
	tests := []struct {
		formula string
		at      int
		count   int
		want    string
	}{
		{"=A1+A5", 2, 1, "=A1+A6"},     // below the insertion shifts
		{"=A1+A5", 0, 2, "=A3+A7"},     // everything shifts
		{"=$A$5", 2, 1, "=$A$6"},       // absolute shifts too, the cell moved
		{"=SUM(A1:A5)", 2, 1, "=SUM(A1:A6)"},
	}

	for _, tt := range tests {
		if got := AdjustForRowInsert(tt.formula, tt.at, tt.count); got != tt.want {
			t.Errorf("AdjustForRowInsert(%q, %d, %d) = %q, want %q", tt.formula, tt.at, tt.count, got, tt.want)
		}
	}
}

func TestAdjustForRowDelete(t *testing.T) {
	tests := []struct {
		formula string
		at      int
		count   int
		want    string
	}{
		{"=A1+A5", 2, 1, "=A1+A4"},
		{"=A3", 2, 1, "=#REF!"},           // deleted band
		{"=A3+A4", 2, 2, "=#REF!+#REF!"},     // both in the band
		{"=SUM(A1:A3)", 2, 1, "=SUM(A1:A2)"}, // range shrinks past the band
		{"=SUM(A3:A4)", 2, 2, "=#REF!"},      // range fully inside the band
	}

	for _, tt := range tests {
		if got := AdjustForRowDelete(tt.formula, tt.at, tt.count); got != tt.want {
			t.Errorf("AdjustForRowDelete(%q, %d, %d) = %q, want %q", tt.formula, tt.at, tt.count, got, tt.want)
		}
	}
}

func TestAdjustForColInsertDelete(t *testing.T) {
	if got := AdjustForColInsert("=A1+C1", 1, 1); got != "=A1+D1" {
		t.Errorf("AdjustForColInsert = %q, want =A1+D1", got)
	}
	if got := AdjustForColDelete("=A1+C1", 1, 1); got != "=A1+B1" {
		t.Errorf("AdjustForColDelete = %q, want =A1+B1", got)
	}
	if got := AdjustForColDelete("=B1", 1, 1); got != "=#REF!" {
		t.Errorf("AdjustForColDelete deleted band = %q, want =#REF!", got)
	}
}

func TestAdjustedFormulaStillParses(t *testing.T) {
	adjusted := AdjustForRowDelete("=A3+1", 2, 1)
	node := ParseFormula(adjusted)
	bin, ok := node.(*BinaryOpNode)
	if !ok {
		t.Fatalf("adjusted formula %q parsed to %T, want BinaryOpNode", adjusted, node)
	}
	if _, ok := bin.Left.(*ErrorNode); !ok {
		t.Errorf("left of %q = %T, want ErrorNode", adjusted, bin.Left)
	}
}
