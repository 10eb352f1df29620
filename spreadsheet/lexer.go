package spreadsheet

import "fmt"

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenEquals
	TokenNumber
	TokenString
	TokenBoolean
	TokenErrorLiteral
	TokenCell
	TokenRange
	TokenFunction
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenColon
	TokenLeftParen
	TokenRightParen
	TokenIdentifier
	TokenWhitespace
)

// character classification constants. slightly easier to read.
const (
	charNull      = 0
	charTab       = '\t'
	charNewline   = '\n'
	charReturn    = '\r'
	charSpace     = ' '
	charQuote     = '"'
	charPercent   = '%'
	charAmpersand = '&'
	charLParen    = '('
	charRParen    = ')'
	charAsterisk  = '*'
	charPlus      = '+'
	charComma     = ','
	charMinus     = '-'
	charPeriod    = '.'
	charSlash     = '/'
	charColon     = ':'
	charLess      = '<'
	charEqual     = '='
	charGreater   = '>'
	charCaret     = '^'
	charDollar    = '$'
	charHash      = '#'
	charUnderbar  = '_'
)

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune position in input
}

// TokenError describes a malformed literal or unexpected character. it is
// never propagated past the parser, which downgrades it to an ErrorNode.
type TokenError struct {
	Pos    int
	Reason string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("position %d: %s", e.Pos, e.Reason)
}

// TokenState represents the lexer state for validation
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterEquals
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
	StateAfterColon
	StateAfterIdentifier
)

// tokenTransitions maps the current state to valid next token types
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart: {
		TokenEquals:        true, // formula prefix
		TokenUnaryPrefixOp: true, // unary +/-
		TokenNumber:        true,
		TokenString:        true,
		TokenBoolean:       true,
		TokenErrorLiteral:  true,
		TokenCell:          true,
		TokenRange:         true, // allow ranges at start for standalone parsing
		TokenFunction:      true,
		TokenIdentifier:    true,
		TokenLeftParen:     true,
	},
	StateAfterValue: { // after number, string, cell, range
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true, // for %
		TokenRightParen:     true,
		TokenComma:          true, // only if in function
		TokenEOF:            true,
		// whitespace is significant - no consecutive values
	},
	StateAfterOperator: {
		TokenNumber:        true,
		TokenString:        true,
		TokenBoolean:       true,
		TokenErrorLiteral:  true,
		TokenCell:          true,
		TokenRange:         true,
		TokenFunction:      true,
		TokenIdentifier:    true,
		TokenLeftParen:     true,
		TokenUnaryPrefixOp: true, // only unary after binary
	},
	StateAfterLeftParen: {
		TokenNumber:        true,
		TokenString:        true,
		TokenBoolean:       true,
		TokenErrorLiteral:  true,
		TokenCell:          true,
		TokenRange:         true, // allow ranges in functions
		TokenFunction:      true,
		TokenIdentifier:    true,
		TokenLeftParen:     true, // nested
		TokenUnaryPrefixOp: true, // unary
		TokenRightParen:    true, // empty parens for arg-less functions like PI()
	},
	StateAfterRightParen: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true, // for %
		TokenRightParen:     true, // if nested
		TokenComma:          true, // if in function
		TokenEOF:            true,
	},
	StateAfterComma: { // only valid in function context
		TokenNumber:        true,
		TokenString:        true,
		TokenBoolean:       true,
		TokenErrorLiteral:  true,
		TokenCell:          true,
		TokenRange:         true, // allow ranges in function arguments
		TokenFunction:      true,
		TokenIdentifier:    true,
		TokenLeftParen:     true,
		TokenUnaryPrefixOp: true, // unary
	},
	StateAfterColon: { // only after cell, expecting another cell
		TokenCell: true,
		// nothing else is valid
	},
	StateAfterIdentifier: {
		TokenLeftParen:      true, // function call
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true, // for %
		TokenRightParen:     true, // if in parens
		TokenComma:          true, // if in function args
		TokenEOF:            true,
	},
	StateAfterEquals: {
		TokenNumber:        true,
		TokenString:        true,
		TokenBoolean:       true,
		TokenErrorLiteral:  true,
		TokenCell:          true,
		TokenRange:         true,
		TokenFunction:      true,
		TokenIdentifier:    true,
		TokenLeftParen:     true,
		TokenUnaryPrefixOp: true, // unary +/-
	},
}

// Lexer tokenizes spreadsheet formula expressions. it is a pure function of
// its input: no side effects beyond the returned tokens.
type Lexer struct {
	input      string
	runes      []rune // UTF-8 aware representation
	pos        int
	state      TokenState
	parenDepth int
	inString   bool
	tokens     []Token
	context    *LexerContext
}

// LexerContext defines the context for lexing
type LexerContext struct {
	InitialState   TokenState
	ExpectedTokens map[TokenType]bool
}

// NewLexer creates a new lexer for full formula input (leading '=' expected)
func NewLexer(input string) *Lexer {
	return NewLexerWithContext(input, &LexerContext{
		InitialState:   StateStart,
		ExpectedTokens: nil, // allow all tokens
	})
}

// NewLexerWithContext creates a new lexer with specific context
func NewLexerWithContext(input string, context *LexerContext) *Lexer {
	return &Lexer{
		input:   input,
		runes:   []rune(input), // runes for UTF-8 support. could do without but a real pain
		pos:     0,
		state:   context.InitialState,
		tokens:  []Token{},
		context: context,
	}
}

// NewLexerForReference creates a lexer specifically for parsing cell
// references or ranges
func NewLexerForReference(input string) *Lexer {
	return NewLexerWithContext(input, &LexerContext{
		InitialState: StateStart,
		ExpectedTokens: map[TokenType]bool{
			TokenCell:  true,
			TokenRange: true,
		},
	})
}

// NewLexerForNumber creates a lexer specifically for parsing numbers
func NewLexerForNumber(input string) *Lexer {
	return NewLexerWithContext(input, &LexerContext{
		InitialState: StateStart,
		ExpectedTokens: map[TokenType]bool{
			TokenUnaryPrefixOp: true, // for unary +/-
			TokenNumber:        true,
		},
	})
}

// NewLexerForBoolean creates a lexer specifically for parsing booleans
func NewLexerForBoolean(input string) *Lexer {
	return NewLexerWithContext(input, &LexerContext{
		InitialState: StateStart,
		ExpectedTokens: map[TokenType]bool{
			TokenBoolean: true,
		},
	})
}

// Tokenize tokenizes the entire input and returns the token list terminated
// by EOF, or a TokenError describing the first malformed construct
func (l *Lexer) Tokenize() ([]Token, *TokenError) {
	if l.context == nil || l.context.ExpectedTokens == nil {
		// full formula lexer - must start with = and we tokenize it
		if len(l.runes) == 0 || l.runes[0] != '=' {
			return nil, &TokenError{Pos: 0, Reason: "formula must start with '='"}
		}
	}

	for l.pos < len(l.runes) {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenWhitespace {
			continue
		}
		if tok.Type == TokenEOF {
			break
		}
		// validate state transition
		if !l.validateTransition(tok.Type) {
			return nil, &TokenError{Pos: tok.Pos, Reason: "unexpected token: " + tok.Value}
		}
		l.tokens = append(l.tokens, tok)
		l.updateState(tok.Type)
	}

	if l.parenDepth > 0 {
		return nil, &TokenError{Pos: l.pos, Reason: "unbalanced parentheses: missing closing parenthesis"}
	}
	if l.inString {
		return nil, &TokenError{Pos: l.pos, Reason: "unclosed string literal"}
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
	return l.tokens, nil
}

// validateTransition checks if the token type is valid in current state
func (l *Lexer) validateTransition(tokenType TokenType) bool {
	// check context-specific expected tokens first
	if l.context != nil && len(l.context.ExpectedTokens) > 0 {
		// for specialized lexers, membership in ExpectedTokens is the only rule
		return l.context.ExpectedTokens[tokenType]
	}

	validTokens, exists := tokenTransitions[l.state]
	if !exists {
		return false
	}
	return validTokens[tokenType]
}

// updateState updates the lexer state based on the token type
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenEquals:
		l.state = StateAfterEquals
	case TokenNumber, TokenString, TokenBoolean, TokenErrorLiteral, TokenCell, TokenRange:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenUnaryPostfixOp:
		// postfix operators don't change state
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.state = StateAfterRightParen
	case TokenComma:
		l.state = StateAfterComma
	case TokenColon:
		l.state = StateAfterColon
	case TokenIdentifier, TokenFunction:
		l.state = StateAfterIdentifier
	}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() (Token, *TokenError) {
	l.skipWhitespace()

	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	startPos := l.pos
	ch := l.current()

	// string literals
	if ch == charQuote {
		return l.scanString()
	}

	// numbers
	if l.isDigit(ch) || (ch == charPeriod && l.isDigit(l.peek(1))) {
		return l.scanNumber(), nil
	}

	// operators and special characters
	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}, nil
	case charRParen:
		l.pos++
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{}, &TokenError{Pos: startPos, Reason: "unexpected closing parenthesis"}
		}
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}, nil
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}, nil
	case charColon:
		l.pos++
		return Token{Type: TokenColon, Value: ":", Pos: startPos}, nil
	case charPlus, charMinus:
		l.pos++
		if l.isUnaryContext() {
			return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos}, nil
		}
		return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}, nil
	case charAsterisk, charSlash, charCaret, charAmpersand, charLess, charGreater:
		return l.scanBinaryOp()
	case charPercent:
		l.pos++
		if l.isUnaryContext() {
			return Token{}, &TokenError{Pos: startPos, Reason: "unexpected '%'"}
		}
		return Token{Type: TokenUnaryPostfixOp, Value: "%", Pos: startPos}, nil
	case charEqual:
		l.pos++
		// distinguish between formula prefix = and comparison operator =
		if startPos == 0 {
			return Token{Type: TokenEquals, Value: "=", Pos: startPos}, nil
		}
		return Token{Type: TokenBinaryOp, Value: "=", Pos: startPos}, nil
	case charDollar:
		return l.scanIdentifierOrCell()
	case charHash:
		return l.scanErrorLiteral()
	}

	// identifiers, functions, cells, booleans
	if l.isAlpha(ch) || ch == charUnderbar {
		return l.scanIdentifierOrCell()
	}

	l.pos++
	return Token{}, &TokenError{Pos: startPos, Reason: "unexpected character: " + string(ch)}
}

// helper methods for character navigation and classification

// substring returns a substring of the original input based on rune positions
func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charSpace || ch == charTab || ch == charNewline || ch == charReturn {
			l.pos++
		} else {
			break
		}
	}
}

func (l *Lexer) isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func (l *Lexer) isAlphaNumeric(ch rune) bool {
	return l.isAlpha(ch) || l.isDigit(ch)
}

// isCellChar reports whether ch can appear inside a cell reference
func (l *Lexer) isCellChar(ch rune) bool {
	return l.isAlphaNumeric(ch) || ch == charDollar
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	// integer part
	for l.pos < len(l.runes) && l.isDigit(l.current()) {
		l.pos++
	}

	// decimal part
	if l.current() == charPeriod && l.isDigit(l.peek(1)) {
		l.pos++ // consume '.'
		for l.pos < len(l.runes) && l.isDigit(l.current()) {
			l.pos++
		}
	}

	// scientific notation (e or E)
	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++ // consume 'e' or 'E'

		// optional + or - sign
		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}

		// must have at least one digit after e/E
		if !l.isDigit(l.current()) {
			// not scientific notation, restore position
			l.pos = savedPos
		} else {
			for l.pos < len(l.runes) && l.isDigit(l.current()) {
				l.pos++
			}
		}
	}

	value := l.substring(startPos, l.pos)
	return Token{Type: TokenNumber, Value: value, Pos: startPos}
}

// scanString scans a string literal with support for double-quote escapes
func (l *Lexer) scanString() (Token, *TokenError) {
	startPos := l.pos
	l.pos++ // consume opening quote
	l.inString = true

	var result []rune

	for l.pos < len(l.runes) {
		ch := l.current()

		if ch == charQuote {
			// doubled quote is an escape
			if l.peek(1) == charQuote {
				result = append(result, charQuote)
				l.pos += 2 // consume both quotes
			} else {
				l.pos++ // consume closing quote
				l.inString = false
				return Token{Type: TokenString, Value: string(result), Pos: startPos}, nil
			}
		} else {
			result = append(result, ch)
			l.pos++
		}
	}

	l.inString = false
	return Token{}, &TokenError{Pos: startPos, Reason: "unclosed string literal"}
}

// scanIdentifierOrCell scans identifiers, functions, cells, ranges, and booleans
func (l *Lexer) scanIdentifierOrCell() (Token, *TokenError) {
	startPos := l.pos

	for l.pos < len(l.runes) && (l.isCellChar(l.current()) || l.current() == charUnderbar) {
		l.pos++
	}

	value := l.substring(startPos, l.pos)
	upperValue := l.toUpper(value)

	// boolean literals
	if upperValue == "TRUE" || upperValue == "FALSE" {
		return Token{Type: TokenBoolean, Value: upperValue, Pos: startPos}, nil
	}

	// cell reference, possibly the start of a range
	if l.isCell(value) {
		if l.current() == charColon {
			savedPos := l.pos
			l.pos++ // consume ':'

			// try to scan another cell
			cellStart := l.pos
			for l.pos < len(l.runes) && l.isCellChar(l.current()) {
				l.pos++
			}

			secondCell := l.substring(cellStart, l.pos)
			if l.isCell(secondCell) {
				rangeValue := l.substring(startPos, l.pos)
				return Token{Type: TokenRange, Value: rangeValue, Pos: startPos}, nil
			}
			// not a valid range, restore position and return just the cell
			l.pos = savedPos
			return Token{Type: TokenCell, Value: value, Pos: startPos}, nil
		}
		return Token{Type: TokenCell, Value: value, Pos: startPos}, nil
	}

	// '$' is only legal inside a cell reference
	if l.runes[startPos] == charDollar {
		return Token{}, &TokenError{Pos: startPos, Reason: "invalid cell reference: " + value}
	}

	// function name (followed by open paren)
	if l.current() == charLParen {
		return Token{Type: TokenFunction, Value: upperValue, Pos: startPos}, nil
	}

	// bare identifier
	return Token{Type: TokenIdentifier, Value: value, Pos: startPos}, nil
}

// isCell checks if a string is a valid cell reference
// (e.g., A1, B12, $A$1, $A1, A$1)
func (l *Lexer) isCell(s string) bool {
	runes := []rune(s)
	i := 0
	if i < len(runes) && runes[i] == charDollar {
		i++
	}

	letterStart := i
	for i < len(runes) && l.isAlpha(runes[i]) {
		i++
	}
	if i == letterStart {
		return false // no letters
	}

	if i < len(runes) && runes[i] == charDollar {
		i++
	}

	digitStart := i
	for i < len(runes) && l.isDigit(runes[i]) {
		i++
	}
	if i == digitStart {
		return false // no digits
	}

	return i == len(runes)
}

// toUpper converts a string to uppercase
func (l *Lexer) toUpper(s string) string {
	result := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch >= 'a' && ch <= 'z' {
			ch -= 32
		}
		result = append(result, ch)
	}
	return string(result)
}

// scanErrorLiteral scans an error literal like #REF! or #NAME?. these
// appear when a reference rewrite stamps a dead reference into a formula.
func (l *Lexer) scanErrorLiteral() (Token, *TokenError) {
	startPos := l.pos
	l.pos++ // consume '#'

	for l.pos < len(l.runes) {
		ch := l.current()
		if l.isAlphaNumeric(ch) || ch == charSlash {
			l.pos++
			continue
		}
		if ch == '!' || ch == '?' {
			l.pos++
		}
		break
	}

	value := l.substring(startPos, l.pos)
	if _, ok := errorCodeFromString(value); !ok {
		return Token{}, &TokenError{Pos: startPos, Reason: "unknown error literal: " + value}
	}
	return Token{Type: TokenErrorLiteral, Value: value, Pos: startPos}, nil
}

// scanBinaryOp scans binary operators
func (l *Lexer) scanBinaryOp() (Token, *TokenError) {
	startPos := l.pos
	ch := l.current()

	// two-character operators first
	if ch == charLess {
		l.pos++
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<=", Pos: startPos}, nil
		} else if l.current() == charGreater {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<>", Pos: startPos}, nil
		}
		return Token{Type: TokenBinaryOp, Value: "<", Pos: startPos}, nil
	}

	if ch == charGreater {
		l.pos++
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: ">=", Pos: startPos}, nil
		}
		return Token{Type: TokenBinaryOp, Value: ">", Pos: startPos}, nil
	}

	// single character binary operators
	switch ch {
	case charAsterisk:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: "*", Pos: startPos}, nil
	case charSlash:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: "/", Pos: startPos}, nil
	case charCaret:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: "^", Pos: startPos}, nil
	case charAmpersand:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: "&", Pos: startPos}, nil
	}

	return Token{}, &TokenError{Pos: startPos, Reason: "unknown operator"}
}

// isUnaryContext checks if the current context allows for unary operators
func (l *Lexer) isUnaryContext() bool {
	// unary operators are allowed after:
	// - start of expression
	// - after equals (=)
	// - after another operator
	// - after left paren
	// - after comma
	switch l.state {
	case StateStart, StateAfterEquals, StateAfterOperator, StateAfterLeftParen, StateAfterComma:
		return true
	default:
		return false
	}
}
