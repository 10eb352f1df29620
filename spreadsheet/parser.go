package spreadsheet

import (
	"strconv"
	"strings"
)

// Parser parses a token stream into an AST. grammar violations are bound
// to an ErrorNode at the offending position instead of failing the whole
// parse, so one malformed formula never aborts evaluation of its siblings.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a new parser over the given tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		pos:    0,
	}
}

// ParseFormula tokenizes and parses formula text (including the leading
// '='). it always returns a usable tree: lexer and grammar failures come
// back as an ErrorNode.
func ParseFormula(text string) ASTNode {
	tokens, lexErr := NewLexer(text).Tokenize()
	if lexErr != nil {
		return &ErrorNode{
			Code:   ErrorCodeValue,
			Reason: lexErr.Reason,
			Pos:    NodePosition{Start: lexErr.Pos, End: lexErr.Pos},
		}
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into an AST. never returns nil.
func (p *Parser) Parse() ASTNode {
	if len(p.tokens) == 0 {
		return &ErrorNode{Code: ErrorCodeValue, Reason: "no tokens to parse"}
	}

	// expect and skip the equals prefix
	if p.tokens[p.pos].Type != TokenEquals {
		return &ErrorNode{Code: ErrorCodeValue, Reason: "formula must start with '='"}
	}
	p.pos++ // consume the equals token

	node := p.parseComparison()

	// all tokens except EOF must be consumed
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type != TokenEOF {
		tok := p.tokens[p.pos]
		return &ErrorNode{
			Code:   ErrorCodeValue,
			Reason: "unexpected token after expression: " + tok.Value,
			Pos:    NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)},
		}
	}

	return node
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() ASTNode {
	left := p.parseConcatenation()

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "=":
			op = BinOpEqual
		case "<>":
			op = BinOpNotEqual
		case "<":
			op = BinOpLess
		case "<=":
			op = BinOpLessEqual
		case ">":
			op = BinOpGreater
		case ">=":
			op = BinOpGreaterEqual
		default:
			return left
		}

		p.pos++
		right := p.parseConcatenation()

		left = &BinaryOpNode{
			Op:    op,
			Left:  left,
			Right: right,
			Pos:   NodePosition{Start: left.Position().Start, End: right.Position().End},
		}
	}

	return left
}

// parseConcatenation handles the string concatenation operator
func (p *Parser) parseConcatenation() ASTNode {
	left := p.parseAddition()

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp || tok.Value != "&" {
			break
		}

		p.pos++
		right := p.parseAddition()

		left = &BinaryOpNode{
			Op:    BinOpConcat,
			Left:  left,
			Right: right,
			Pos:   NodePosition{Start: left.Position().Start, End: right.Position().End},
		}
	}

	return left
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() ASTNode {
	left := p.parseMultiplication()

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left
		}

		p.pos++
		right := p.parseMultiplication()

		left = &BinaryOpNode{
			Op:    op,
			Left:  left,
			Right: right,
			Pos:   NodePosition{Start: left.Position().Start, End: right.Position().End},
		}
	}

	return left
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() ASTNode {
	left := p.parsePower()

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			return left
		}

		p.pos++
		right := p.parsePower()

		left = &BinaryOpNode{
			Op:    op,
			Left:  left,
			Right: right,
			Pos:   NodePosition{Start: left.Position().Start, End: right.Position().End},
		}
	}

	return left
}

// parsePower handles exponentiation
func (p *Parser) parsePower() ASTNode {
	left := p.parseUnary()

	// right-associative
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenBinaryOp && p.tokens[p.pos].Value == "^" {
		p.pos++
		right := p.parsePower() // recursive for right-associativity

		return &BinaryOpNode{
			Op:    BinOpPower,
			Left:  left,
			Right: right,
			Pos:   NodePosition{Start: left.Position().Start, End: right.Position().End},
		}
	}

	return left
}

// parseUnary handles prefix unary operators
func (p *Parser) parseUnary() ASTNode {
	if p.pos >= len(p.tokens) {
		return p.errorNodeHere(ErrorCodeValue, "unexpected end of expression")
	}

	tok := p.tokens[p.pos]

	if tok.Type == TokenUnaryPrefixOp {
		var op UnaryOp
		switch tok.Value {
		case "+":
			op = UnaryOpPlus
		case "-":
			op = UnaryOpMinus
		default:
			return p.parsePostfix()
		}

		startPos := tok.Pos
		p.pos++
		operand := p.parseUnary() // recurse for chained unary operators

		return &UnaryOpNode{
			Op:      op,
			Operand: operand,
			Pos:     NodePosition{Start: startPos, End: operand.Position().End},
		}
	}

	return p.parsePostfix()
}

// parsePostfix handles the postfix percent operator
func (p *Parser) parsePostfix() ASTNode {
	node := p.parsePrimary()

	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenUnaryPostfixOp && p.tokens[p.pos].Value == "%" {
		endPos := p.tokens[p.pos].Pos + 1
		p.pos++

		return &UnaryOpNode{
			Op:      UnaryOpPercent,
			Operand: node,
			Pos:     NodePosition{Start: node.Position().Start, End: endPos},
		}
	}

	return node
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses)
func (p *Parser) parsePrimary() ASTNode {
	if p.pos >= len(p.tokens) {
		return p.errorNodeHere(ErrorCodeValue, "unexpected end of expression")
	}

	tok := p.tokens[p.pos]

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return &ErrorNode{
				Code:   ErrorCodeValue,
				Reason: "invalid number: " + tok.Value,
				Pos:    tokenPosition(tok),
			}
		}
		return &NumberNode{Value: val, Pos: tokenPosition(tok)}

	case TokenString:
		p.pos++
		return &StringNode{
			Value: tok.Value,
			Pos:   NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value) + 2}, // +2 for quotes
		}

	case TokenBoolean:
		p.pos++
		return &BooleanNode{Value: tok.Value == "TRUE", Pos: tokenPosition(tok)}

	case TokenErrorLiteral:
		p.pos++
		code, ok := errorCodeFromString(tok.Value)
		if !ok {
			code = ErrorCodeOther
		}
		return &ErrorNode{
			Code:   code,
			Reason: tok.Value,
			Pos:    tokenPosition(tok),
		}

	case TokenCell:
		p.pos++
		return p.parseCellReference(tok)

	case TokenRange:
		p.pos++
		return p.parseRange(tok)

	case TokenIdentifier:
		// bare identifier with no call syntax. nothing to bind it to.
		p.pos++
		return &ErrorNode{
			Code:   ErrorCodeName,
			Reason: "unknown name: " + tok.Value,
			Pos:    tokenPosition(tok),
		}

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node := p.parseComparison()

		if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenRightParen {
			return p.errorNodeHere(ErrorCodeValue, "expected closing parenthesis")
		}
		p.pos++

		return node

	default:
		p.pos++ // guarantee progress
		return &ErrorNode{
			Code:   ErrorCodeValue,
			Reason: "unexpected token: " + tok.Value,
			Pos:    tokenPosition(tok),
		}
	}
}

// parseFunctionCall parses a function call. a malformed argument becomes
// an ErrorNode argument; the call itself survives.
func (p *Parser) parseFunctionCall() ASTNode {
	funcTok := p.tokens[p.pos]
	funcName := funcTok.Value
	startPos := funcTok.Pos
	p.pos++

	// expect opening parenthesis
	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenLeftParen {
		return p.errorNodeHere(ErrorCodeValue, "expected '(' after function name")
	}
	p.pos++

	args := []ASTNode{}

	// empty argument list
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenRightParen {
		p.pos++
		return &FunctionCallNode{
			Name: funcName,
			Args: args,
			Pos:  NodePosition{Start: startPos, End: p.tokens[p.pos-1].Pos + 1},
		}
	}

	for {
		arg := p.parseComparison()
		args = append(args, arg)

		if p.pos >= len(p.tokens) || p.tokens[p.pos].Type == TokenEOF {
			return p.errorNodeHere(ErrorCodeValue, "unexpected end in function arguments")
		}

		if p.tokens[p.pos].Type == TokenRightParen {
			p.pos++
			break
		}

		if p.tokens[p.pos].Type != TokenComma {
			// bad argument: record it and resynchronize at the next comma
			// or closing parenthesis so the remaining arguments still parse
			tok := p.tokens[p.pos]
			args[len(args)-1] = &ErrorNode{
				Code:   ErrorCodeValue,
				Reason: "expected ',' or ')' in function arguments",
				Pos:    tokenPosition(tok),
			}
			if !p.synchronizeArgs() {
				return p.errorNodeHere(ErrorCodeValue, "unexpected end in function arguments")
			}
			if p.tokens[p.pos].Type == TokenRightParen {
				p.pos++
				break
			}
		}
		p.pos++ // consume comma
	}

	return &FunctionCallNode{
		Name: funcName,
		Args: args,
		Pos:  NodePosition{Start: startPos, End: p.tokens[p.pos-1].Pos + 1},
	}
}

// synchronizeArgs skips tokens until the next comma or closing parenthesis
// at depth zero. returns false on end of input.
func (p *Parser) synchronizeArgs() bool {
	depth := 0
	for p.pos < len(p.tokens) && p.tokens[p.pos].Type != TokenEOF {
		switch p.tokens[p.pos].Type {
		case TokenLeftParen:
			depth++
		case TokenRightParen:
			if depth == 0 {
				return true
			}
			depth--
		case TokenComma:
			if depth == 0 {
				return true
			}
		}
		p.pos++
	}
	return false
}

// parseCellReference parses a cell reference token into a CellRefNode
func (p *Parser) parseCellReference(tok Token) ASTNode {
	col, row, absCol, absRow, err := parseCellRef(tok.Value)
	if err != nil {
		return &ErrorNode{
			Code:   ErrorCodeRef,
			Reason: err.Error(),
			Pos:    tokenPosition(tok),
		}
	}

	return &CellRefNode{
		Row:    row,
		Col:    col,
		AbsRow: absRow,
		AbsCol: absCol,
		Pos:    tokenPosition(tok),
	}
}

// parseRange parses a range token into a RangeRefNode
func (p *Parser) parseRange(tok Token) ASTNode {
	parts := strings.Split(tok.Value, ":")
	if len(parts) != 2 {
		return &ErrorNode{
			Code:   ErrorCodeRef,
			Reason: "invalid range format: " + tok.Value,
			Pos:    tokenPosition(tok),
		}
	}

	startCol, startRow, startAbsCol, startAbsRow, err := parseCellRef(parts[0])
	if err != nil {
		return &ErrorNode{
			Code:   ErrorCodeRef,
			Reason: "invalid start cell in range: " + parts[0],
			Pos:    tokenPosition(tok),
		}
	}

	endCol, endRow, endAbsCol, endAbsRow, err := parseCellRef(parts[1])
	if err != nil {
		return &ErrorNode{
			Code:   ErrorCodeRef,
			Reason: "invalid end cell in range: " + parts[1],
			Pos:    tokenPosition(tok),
		}
	}

	return &RangeRefNode{
		Start: CellRefNode{Row: startRow, Col: startCol, AbsRow: startAbsRow, AbsCol: startAbsCol},
		End:   CellRefNode{Row: endRow, Col: endCol, AbsRow: endAbsRow, AbsCol: endAbsCol},
		Pos:   tokenPosition(tok),
	}
}

// errorNodeHere builds an ErrorNode at the current token position
func (p *Parser) errorNodeHere(code ErrorCode, reason string) *ErrorNode {
	pos := 0
	if p.pos < len(p.tokens) {
		pos = p.tokens[p.pos].Pos
	} else if len(p.tokens) > 0 {
		pos = p.tokens[len(p.tokens)-1].Pos
	}
	return &ErrorNode{
		Code:   code,
		Reason: reason,
		Pos:    NodePosition{Start: pos, End: pos},
	}
}

func tokenPosition(tok Token) NodePosition {
	return NodePosition{Start: tok.Pos, End: tok.Pos + len(tok.Value)}
}
