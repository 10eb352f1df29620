package spreadsheet

import "strings"

// refTransform maps one reference to another. ok=false means the
// reference no longer points at a live cell.
type refTransform func(col, row int, absCol, absRow bool) (newCol, newRow int, ok bool)

// refAdjuster bundles the cell transform with optional corner clamps.
// deletions shrink a partially affected range instead of killing it:
// a dead start corner clamps to the first surviving cell after the
// deleted band, a dead end corner to the last one before it.
type refAdjuster struct {
	transform  refTransform
	clampStart func(col, row int) (int, int)
	clampEnd   func(col, row int) (int, int)
}

// AdjustRefs rewrites the cell and range references in a formula by a
// row and column offset, the copy/paste adjustment. absolute axes
// (marked with '$') do not move. references pushed off the top or left
// edge become #REF!. non-formula text and text that fails to tokenize
// are returned unchanged; string literals are never touched because the
// rewrite splices at token positions instead of pattern matching.
func AdjustRefs(formula string, rowDelta, colDelta int) string {
	return rewriteRefs(formula, refAdjuster{
		transform: func(col, row int, absCol, absRow bool) (int, int, bool) {
			if !absCol {
				col += colDelta
			}
			if !absRow {
				row += rowDelta
			}
			return col, row, col >= 0 && row >= 0
		},
	})
}

// AdjustForRowInsert rewrites references after count rows are inserted
// at the given row. rows at or below the insertion point shift down,
// absolute or not, because the cells themselves moved.
func AdjustForRowInsert(formula string, at, count int) string {
	return rewriteRefs(formula, refAdjuster{
		transform: func(col, row int, absCol, absRow bool) (int, int, bool) {
			if row >= at {
				row += count
			}
			return col, row, true
		},
	})
}

// AdjustForRowDelete rewrites references after count rows are deleted
// at the given row. lone references into the deleted band become #REF!;
// ranges shrink past the band and die only when fully inside it.
func AdjustForRowDelete(formula string, at, count int) string {
	return rewriteRefs(formula, refAdjuster{
		transform: func(col, row int, absCol, absRow bool) (int, int, bool) {
			if row >= at && row < at+count {
				return col, row, false
			}
			if row >= at+count {
				row -= count
			}
			return col, row, true
		},
		clampStart: func(col, row int) (int, int) { return col, at },
		clampEnd:   func(col, row int) (int, int) { return col, at - 1 },
	})
}

// AdjustForColInsert rewrites references after count columns are
// inserted at the given column.
func AdjustForColInsert(formula string, at, count int) string {
	return rewriteRefs(formula, refAdjuster{
		transform: func(col, row int, absCol, absRow bool) (int, int, bool) {
			if col >= at {
				col += count
			}
			return col, row, true
		},
	})
}

// AdjustForColDelete rewrites references after count columns are
// deleted at the given column.
func AdjustForColDelete(formula string, at, count int) string {
	return rewriteRefs(formula, refAdjuster{
		transform: func(col, row int, absCol, absRow bool) (int, int, bool) {
			if col >= at && col < at+count {
				return col, row, false
			}
			if col >= at+count {
				col -= count
			}
			return col, row, true
		},
		clampStart: func(col, row int) (int, int) { return at, row },
		clampEnd:   func(col, row int) (int, int) { return at - 1, row },
	})
}

// rewriteRefs tokenizes the formula and splices rewritten reference text
// back at the token positions, leaving every other rune untouched
func rewriteRefs(formula string, adj refAdjuster) string {
	if !strings.HasPrefix(formula, "=") {
		return formula
	}

	tokens, lexErr := NewLexer(formula).Tokenize()
	if lexErr != nil {
		return formula
	}

	runes := []rune(formula)
	var b strings.Builder
	last := 0

	for _, tok := range tokens {
		if tok.Type != TokenCell && tok.Type != TokenRange {
			continue
		}
		// cell and range token values are verbatim slices of the input,
		// so the token span is Pos..Pos+len(value) in runes
		b.WriteString(string(runes[last:tok.Pos]))
		b.WriteString(rewriteRefToken(tok, adj))
		last = tok.Pos + len([]rune(tok.Value))
	}
	b.WriteString(string(runes[last:]))

	return b.String()
}

// rewriteRefToken rewrites a single cell or range token
func rewriteRefToken(tok Token, adj refAdjuster) string {
	if tok.Type == TokenRange {
		parts := strings.Split(tok.Value, ":")
		if len(parts) != 2 {
			return tok.Value
		}
		start, startOk := rewriteCellText(parts[0], adj.transform, adj.clampStart)
		end, endOk := rewriteCellText(parts[1], adj.transform, adj.clampEnd)
		if !startOk || !endOk || rangeInverted(start, end) {
			return ErrorMapper[ErrorCodeRef]
		}
		return start + ":" + end
	}

	out, ok := rewriteCellText(tok.Value, adj.transform, nil)
	if !ok {
		return ErrorMapper[ErrorCodeRef]
	}
	return out
}

// rewriteCellText applies the transform to one cell reference string.
// clamp, when present, recovers a dead range corner.
func rewriteCellText(text string, transform refTransform, clamp func(col, row int) (int, int)) (string, bool) {
	col, row, absCol, absRow, err := parseCellRef(text)
	if err != nil {
		return text, true // leave unparseable text alone
	}
	newCol, newRow, ok := transform(col, row, absCol, absRow)
	if !ok {
		if clamp == nil {
			return "", false
		}
		newCol, newRow = clamp(col, row)
		if newCol < 0 || newRow < 0 {
			return "", false
		}
	}
	return formatCellRef(newCol, newRow, absCol, absRow), true
}

// rangeInverted reports whether a rewritten range collapsed past itself,
// which happens when the whole range sat inside a deleted band
func rangeInverted(start, end string) bool {
	startCol, startRow, _, _, err1 := parseCellRef(start)
	endCol, endRow, _, _, err2 := parseCellRef(end)
	if err1 != nil || err2 != nil {
		return false
	}
	return startRow > endRow || startCol > endCol
}
