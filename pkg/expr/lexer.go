package expr

import (
	"fmt"
	"strings"
)

// TokenKind classifies a lexed token.
type TokenKind int

const (
	TokenIdent TokenKind = iota
	TokenNumber
	TokenLiteral
	TokenOperator
	TokenOpen
	TokenClose
)

func (k TokenKind) String() string {
	switch k {
	case TokenIdent:
		return "identifier"
	case TokenNumber:
		return "number"
	case TokenLiteral:
		return "literal"
	case TokenOperator:
		return "operator"
	case TokenOpen:
		return "open bracket"
	case TokenClose:
		return "close bracket"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is a single lexeme. For literals Text holds the unquoted content and
// Quote the delimiter that was used.
type Token struct {
	Kind  TokenKind
	Text  string
	Quote byte
	Pos   int
}

const (
	punctuation = "~!@#%^&*-=+:;\\/|<>.,?"
	quotes      = "`'\""
)

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// Lex splits input into tokens. Consecutive punctuation characters form a
// single operator token; the parser decides whether that operator exists.
func Lex(input string) ([]Token, error) {
	var tokens []Token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case isSpace(c):
			i++
		case isLetter(c):
			start := i
			for i < len(input) && (isLetter(input[i]) || isDigit(input[i])) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenIdent, Text: input[start:i], Pos: start})
		case isDigit(c):
			start := i
			for i < len(input) && (isLetter(input[i]) || isDigit(input[i]) || input[i] == '.') && input[i] != '$' {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: input[start:i], Pos: start})
		case strings.IndexByte(quotes, c) >= 0:
			end := strings.IndexByte(input[i+1:], c)
			if end < 0 {
				return nil, &SyntaxError{Input: input, Pos: i, Err: ErrUnterminatedLiteral}
			}
			tokens = append(tokens, Token{Kind: TokenLiteral, Text: input[i+1 : i+1+end], Quote: c, Pos: i})
			i += end + 2
		case c == '(' || c == '[' || c == '{':
			tokens = append(tokens, Token{Kind: TokenOpen, Text: string(c), Pos: i})
			i++
		case c == ')' || c == ']' || c == '}':
			tokens = append(tokens, Token{Kind: TokenClose, Text: string(c), Pos: i})
			i++
		case strings.IndexByte(punctuation, c) >= 0:
			start := i
			for i < len(input) && strings.IndexByte(punctuation, input[i]) >= 0 {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenOperator, Text: input[start:i], Pos: start})
		default:
			return nil, &SyntaxError{Input: input, Pos: i, Err: fmt.Errorf("%w %q", ErrUnexpectedChar, c)}
		}
	}
	return tokens, nil
}
