package spreadsheet

import (
	"fmt"
	"testing"
)

func benchEvaluator(b *testing.B, cells map[CellAddress]string) *Evaluator {
	b.Helper()

	grid := NewMemGrid()
	for addr, raw := range cells {
		grid.SetCell(addr.Row, addr.Col, raw)
	}

	funcs := NewFunctionRegistry()
	if err := NewBuiltInFunctions().RegisterBuiltins(funcs); err != nil {
		b.Fatal(err)
	}
	return NewEvaluator(grid, funcs)
}

func BenchmarkTokenize(b *testing.B) {
	formula := "=SUM(A1:A100)+AVERAGE(B1:B50)*IF(C1>2,1,2)^2"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := NewLexer(formula).Tokenize(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParse(b *testing.B) {
	formula := "=SUM(A1:A100)+AVERAGE(B1:B50)*IF(C1>2,1,2)^2"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseFormula(formula)
	}
}

func BenchmarkEvaluateChain(b *testing.B) {
	// a 500-cell chain where each cell depends on the previous one
	cells := map[CellAddress]string{
		{Row: 0, Col: 0}: "1",
	}
	for row := 1; row < 500; row++ {
		cells[CellAddress{Row: row, Col: 0}] = fmt.Sprintf("=A%d+1", row)
	}
	e := benchEvaluator(b, cells)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Invalidate()
		if v := e.CellValue(499, 0); v != 500.0 {
			b.Fatalf("unexpected value %v", v)
		}
	}
}

func BenchmarkEvaluateChainCached(b *testing.B) {
	cells := map[CellAddress]string{
		{Row: 0, Col: 0}: "1",
	}
	for row := 1; row < 500; row++ {
		cells[CellAddress{Row: row, Col: 0}] = fmt.Sprintf("=A%d+1", row)
	}
	e := benchEvaluator(b, cells)
	e.CellValue(499, 0) // warm the cache

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if v := e.CellValue(499, 0); v != 500.0 {
			b.Fatalf("unexpected value %v", v)
		}
	}
}

func BenchmarkEvaluateWideSum(b *testing.B) {
	cells := map[CellAddress]string{}
	for col := 0; col < 26; col++ {
		for row := 0; row < 40; row++ {
			cells[CellAddress{Row: row, Col: col}] = "2"
		}
	}
	cells[CellAddress{Row: 50, Col: 0}] = "=SUM(A1:Z40)"
	e := benchEvaluator(b, cells)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Invalidate()
		if v := e.CellValue(50, 0); v != 2080.0 {
			b.Fatalf("unexpected value %v", v)
		}
	}
}

func BenchmarkAdjustRefs(b *testing.B) {
	formula := "=SUM($A$1:B20)+C3*D4-E5&\"label\""
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		AdjustRefs(formula, 3, 2)
	}
}
