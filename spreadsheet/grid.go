package spreadsheet

// Grid supplies raw cell text to the evaluator. implementations own
// storage; the evaluator never mutates a grid.
type Grid interface {
	// CellRaw returns the raw text of a cell and whether the cell exists.
	// formulas carry their leading '='.
	CellRaw(row, col int) (string, bool)

	// RangeRaw returns raw cell text for a rectangle in row-major order,
	// empty strings for empty cells. the evaluator itself resolves ranges
	// cell by cell so caching and cycle detection see each address; this
	// is the bulk read path for hosts.
	RangeRaw(r RangeAddress) []string
}

// MemGrid is an in-memory Grid with structural editing. every mutation
// fires the edit hook, which the evaluator uses to drop its value cache.
type MemGrid struct {
	cells  map[CellAddress]string
	onEdit func()
}

// NewMemGrid creates an empty in-memory grid
func NewMemGrid() *MemGrid {
	return &MemGrid{
		cells: make(map[CellAddress]string),
	}
}

// SetOnEdit registers a hook fired after every mutation
func (g *MemGrid) SetOnEdit(hook func()) {
	g.onEdit = hook
}

func (g *MemGrid) fireEdit() {
	if g.onEdit != nil {
		g.onEdit()
	}
}

// CellRaw implements Grid
func (g *MemGrid) CellRaw(row, col int) (string, bool) {
	raw, ok := g.cells[CellAddress{Row: row, Col: col}]
	return raw, ok
}

// RangeRaw implements Grid
func (g *MemGrid) RangeRaw(r RangeAddress) []string {
	n := r.Normalize()
	out := make([]string, 0, (n.EndRow-n.StartRow+1)*(n.EndCol-n.StartCol+1))
	for row := n.StartRow; row <= n.EndRow; row++ {
		for col := n.StartCol; col <= n.EndCol; col++ {
			out = append(out, g.cells[CellAddress{Row: row, Col: col}])
		}
	}
	return out
}

// SetCell stores raw text at a cell. an empty string clears the cell.
func (g *MemGrid) SetCell(row, col int, raw string) {
	addr := CellAddress{Row: row, Col: col}
	if raw == "" {
		delete(g.cells, addr)
	} else {
		g.cells[addr] = raw
	}
	g.fireEdit()
}

// ClearCell removes a cell
func (g *MemGrid) ClearCell(row, col int) {
	delete(g.cells, CellAddress{Row: row, Col: col})
	g.fireEdit()
}

// Cells returns a copy of all populated cells
func (g *MemGrid) Cells() map[CellAddress]string {
	out := make(map[CellAddress]string, len(g.cells))
	for addr, raw := range g.cells {
		out[addr] = raw
	}
	return out
}

// Bounds returns the smallest range covering every populated cell and
// whether the grid has any cells at all
func (g *MemGrid) Bounds() (RangeAddress, bool) {
	if len(g.cells) == 0 {
		return RangeAddress{}, false
	}
	first := true
	var b RangeAddress
	for addr := range g.cells {
		if first {
			b = RangeAddress{StartRow: addr.Row, StartCol: addr.Col, EndRow: addr.Row, EndCol: addr.Col}
			first = false
			continue
		}
		b.StartRow = min(b.StartRow, addr.Row)
		b.StartCol = min(b.StartCol, addr.Col)
		b.EndRow = max(b.EndRow, addr.Row)
		b.EndCol = max(b.EndCol, addr.Col)
	}
	return b, true
}

// InsertRows inserts count empty rows before the given row, shifting
// cells down and rewriting formula references grid-wide
func (g *MemGrid) InsertRows(at, count int) {
	g.restructure(
		func(addr CellAddress) (CellAddress, bool) {
			if addr.Row >= at {
				addr.Row += count
			}
			return addr, true
		},
		func(formula string) string { return AdjustForRowInsert(formula, at, count) },
	)
}

// DeleteRows deletes count rows starting at the given row. formulas
// referring into the deleted band get #REF! stamped into them.
func (g *MemGrid) DeleteRows(at, count int) {
	g.restructure(
		func(addr CellAddress) (CellAddress, bool) {
			if addr.Row >= at && addr.Row < at+count {
				return addr, false
			}
			if addr.Row >= at+count {
				addr.Row -= count
			}
			return addr, true
		},
		func(formula string) string { return AdjustForRowDelete(formula, at, count) },
	)
}

// InsertCols inserts count empty columns before the given column
func (g *MemGrid) InsertCols(at, count int) {
	g.restructure(
		func(addr CellAddress) (CellAddress, bool) {
			if addr.Col >= at {
				addr.Col += count
			}
			return addr, true
		},
		func(formula string) string { return AdjustForColInsert(formula, at, count) },
	)
}

// DeleteCols deletes count columns starting at the given column
func (g *MemGrid) DeleteCols(at, count int) {
	g.restructure(
		func(addr CellAddress) (CellAddress, bool) {
			if addr.Col >= at && addr.Col < at+count {
				return addr, false
			}
			if addr.Col >= at+count {
				addr.Col -= count
			}
			return addr, true
		},
		func(formula string) string { return AdjustForColDelete(formula, at, count) },
	)
}

// restructure rebuilds the cell map after a structural edit. move
// relocates or drops each cell; rewrite fixes formula text.
func (g *MemGrid) restructure(move func(CellAddress) (CellAddress, bool), rewrite func(string) string) {
	next := make(map[CellAddress]string, len(g.cells))
	for addr, raw := range g.cells {
		newAddr, keep := move(addr)
		if !keep {
			continue
		}
		next[newAddr] = rewrite(raw)
	}
	g.cells = next
	g.fireEdit()
}
