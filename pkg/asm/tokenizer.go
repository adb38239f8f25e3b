package asm

// TokenType classifies the token starting at a source offset.
type TokenType int

// Token types.
const (
	TokenEnd TokenType = iota
	TokenSpace
	TokenNumber
	TokenString
	TokenName
	TokenOperator
	TokenBracket
	TokenInvalid
)

var tokenNames = [...]string{
	TokenEnd:      "end",
	TokenSpace:    "space",
	TokenNumber:   "number",
	TokenString:   "string",
	TokenName:     "name",
	TokenOperator: "operator",
	TokenBracket:  "bracket",
	TokenInvalid:  "invalid",
}

func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "unknown"
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isNameByte(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '.'
}

func isOperator(c byte) bool {
	switch c {
	case '+', '-', '*', '/', '%', '=', '&', '|', '?', '!', ';':
		return true
	}
	return false
}

// Classify returns the type of the token starting at src[i]. A NUL byte
// ends the input like the end of the slice does.
func Classify(src []byte, i int) TokenType {
	if i < 0 || i >= len(src) || src[i] == 0 {
		return TokenEnd
	}
	c := src[i]
	switch {
	case isSpace(c):
		return TokenSpace
	case isDigit(c):
		return TokenNumber
	case c == '"':
		return TokenString
	case isLetter(c):
		return TokenName
	case isOperator(c):
		return TokenOperator
	case c == '[' || c == ']':
		return TokenBracket
	}
	return TokenInvalid
}

// Length returns the number of source bytes the token at src[i] spans.
// Strings include both quotes. Zero means there is no token: end of input,
// an invalid byte or an unterminated string.
func Length(src []byte, i int) int {
	switch Classify(src, i) {
	case TokenSpace, TokenOperator, TokenBracket:
		return 1
	case TokenNumber:
		n := 0
		for i+n < len(src) && isDigit(src[i+n]) {
			n++
		}
		return n
	case TokenName:
		n := 0
		for i+n < len(src) && isNameByte(src[i+n]) {
			n++
		}
		return n
	case TokenString:
		for n := 1; i+n < len(src); n++ {
			if src[i+n] == '"' {
				return n + 1
			}
		}
	}
	return 0
}

// MemorySize returns the number of code words the token at src[i] emits.
func MemorySize(src []byte, i int) int {
	switch Classify(src, i) {
	case TokenNumber, TokenName, TokenOperator, TokenBracket:
		return 1
	case TokenString:
		if n := Length(src, i); n > 0 {
			// Header plus one word per byte between the quotes.
			return n - 1
		}
	}
	return 0
}
