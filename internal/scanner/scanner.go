package scanner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/corelang/corec/internal/source"
)

// ScanError is raised for an unterminated string literal or an
// illegal character (spec §4.4, error kind kScanError).
type ScanError struct {
	Message  string
	Location source.Location
	Table    *source.Table
}

func (e *ScanError) Error() string {
	if e.Table == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Table.Excerpt(e.Location), e.Message)
}

type bracketEntry struct {
	kind       Kind
	tokenIndex int
}

// interpFrame tracks one open `${` inside a string literal: braceDepth
// counts nested `{`/`}` pairs opened by the interpolated expression
// itself, so the scanner can tell an expression's own block from the
// `}` that closes the interpolation (spec §9, "model as an explicit
// mode stack").
type interpFrame struct {
	braceDepth int
	quote      byte
	triple     bool
}

// Scanner turns one file's bytes into a token sequence.
type Scanner struct {
	input  []byte
	table  *source.Table
	base   source.Location
	idents *IdentifierTable

	cursor int
	tokens []Token

	integers []int64
	doubles  []float64
	strings  []string

	brackets []bracketEntry
	interp   []interpFrame
}

// New creates a Scanner over the file that base (obtained from
// table.LoadFile/LoadBytes) resolves into, interning identifiers
// through idents.
func New(table *source.Table, base source.Location, idents *IdentifierTable) *Scanner {
	return &Scanner{
		input:  table.Bytes(base),
		table:  table,
		base:   base,
		idents: idents,
	}
}

// Result is the output of a successful scan.
type Result struct {
	Tokens   []Token
	Integers []int64
	Doubles  []float64
	Strings  []string
}

// Scan tokenizes the whole input, returning kScanError on the first
// unterminated literal or illegal character.
func (s *Scanner) Scan() (Result, error) {
	for s.cursor < len(s.input) {
		if err := s.scanOne(); err != nil {
			return Result{}, err
		}
	}
	// Any bracket left open at EOF never got a match; its payload
	// was defaulted to -1 when emitted for unmatched closers, but
	// openers default to 0, so patch them explicitly.
	for _, b := range s.brackets {
		s.tokens[b.tokenIndex].Payload = -1
	}
	return Result{
		Tokens:   s.tokens,
		Integers: s.integers,
		Doubles:  s.doubles,
		Strings:  s.strings,
	}, nil
}

func (s *Scanner) loc() source.Location { return s.table.LocationAt(s.base, s.cursor) }

func (s *Scanner) peek() byte {
	if s.cursor >= len(s.input) {
		return 0
	}
	return s.input[s.cursor]
}

func (s *Scanner) peekAt(n int) byte {
	if s.cursor+n >= len(s.input) {
		return 0
	}
	return s.input[s.cursor+n]
}

func (s *Scanner) emit(kind Kind, payload int32, loc source.Location) int {
	idx := len(s.tokens)
	s.tokens = append(s.tokens, Token{Kind: kind, Payload: payload, Location: loc})
	return idx
}

func (s *Scanner) errorf(loc source.Location, format string, args ...any) error {
	return &ScanError{Message: fmt.Sprintf(format, args...), Location: loc, Table: s.table}
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentCont(c byte) bool { return isIdentStart(c) || isDigit(c) }

func (s *Scanner) scanOne() error {
	c := s.peek()

	switch {
	case isSpace(c):
		s.cursor++
		return nil
	case c == '/' && s.peekAt(1) == '/':
		for s.cursor < len(s.input) && s.input[s.cursor] != '\n' {
			s.cursor++
		}
		return nil
	case c == '/' && s.peekAt(1) == '*':
		return s.scanBlockComment()
	case c == 'r' && (s.peekAt(1) == '\'' || s.peekAt(1) == '"'):
		return s.scanString(true)
	case c == '\'' || c == '"':
		return s.scanString(false)
	case isIdentStart(c):
		return s.scanIdentifier()
	case isDigit(c):
		return s.scanNumber()
	default:
		return s.scanOperator()
	}
}

func (s *Scanner) scanBlockComment() error {
	start := s.loc()
	depth := 0
	for {
		if s.cursor >= len(s.input) {
			return s.errorf(start, "unterminated block comment")
		}
		if s.peek() == '/' && s.peekAt(1) == '*' {
			depth++
			s.cursor += 2
			continue
		}
		if s.peek() == '*' && s.peekAt(1) == '/' {
			depth--
			s.cursor += 2
			if depth == 0 {
				return nil
			}
			continue
		}
		s.cursor++
	}
}

func (s *Scanner) scanIdentifier() error {
	start := s.cursor
	loc := s.loc()
	for s.cursor < len(s.input) && isIdentCont(s.input[s.cursor]) {
		s.cursor++
	}
	name := s.input[start:s.cursor]
	id := s.idents.Intern(name)
	if kind, ok := s.idents.KeywordKind(id); ok {
		s.emit(kind, id, loc)
		return nil
	}
	s.emit(KIdentifier, id, loc)
	return nil
}

func (s *Scanner) scanNumber() error {
	start := s.cursor
	loc := s.loc()

	if s.peek() == '0' && (s.peekAt(1) == 'x' || s.peekAt(1) == 'X') {
		s.cursor += 2
		for s.cursor < len(s.input) && isHexDigit(s.input[s.cursor]) {
			s.cursor++
		}
		v, err := strconv.ParseInt(string(s.input[start+2:s.cursor]), 16, 64)
		if err != nil {
			return s.errorf(loc, "illegal hex integer literal")
		}
		idx := len(s.integers)
		s.integers = append(s.integers, v)
		s.emit(KInteger, int32(idx), loc)
		return nil
	}

	for s.cursor < len(s.input) && isDigit(s.input[s.cursor]) {
		s.cursor++
	}

	isDouble := false
	if s.peek() == '.' && isDigit(s.peekAt(1)) {
		isDouble = true
		s.cursor++
		for s.cursor < len(s.input) && isDigit(s.input[s.cursor]) {
			s.cursor++
		}
	}
	if s.peek() == 'e' || s.peek() == 'E' {
		save := s.cursor
		s.cursor++
		if s.peek() == '+' || s.peek() == '-' {
			s.cursor++
		}
		if isDigit(s.peek()) {
			isDouble = true
			for s.cursor < len(s.input) && isDigit(s.input[s.cursor]) {
				s.cursor++
			}
		} else {
			s.cursor = save
		}
	}

	text := string(s.input[start:s.cursor])
	if isDouble {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return s.errorf(loc, "illegal double literal %q", text)
		}
		idx := len(s.doubles)
		s.doubles = append(s.doubles, v)
		s.emit(KDouble, int32(idx), loc)
		return nil
	}

	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return s.errorf(loc, "illegal integer literal %q", text)
	}
	idx := len(s.integers)
	s.integers = append(s.integers, v)
	s.emit(KInteger, int32(idx), loc)
	return nil
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (s *Scanner) pushString(text string) int32 {
	idx := len(s.strings)
	s.strings = append(s.strings, text)
	return int32(idx)
}

// scanString scans one string literal, including any $-interpolation,
// producing either a single kString token or the synthetic
// kStringInterpolation ... kStringInterpolationEnd micro-sequence
// (spec §4.4).
func (s *Scanner) scanString(raw bool) error {
	loc := s.loc()
	if raw {
		s.cursor++ // consume 'r'
	}
	quote := s.peek()
	triple := s.peekAt(1) == quote && s.peekAt(2) == quote
	if triple {
		s.cursor += 3
	} else {
		s.cursor++
	}

	var segment strings.Builder
	hadInterpolation := false

	closeLiteral := func() {
		if hadInterpolation {
			s.emit(KStringInterpolationEnd, s.pushString(segment.String()), loc)
		} else {
			s.emit(KString, s.pushString(segment.String()), loc)
		}
	}

	for {
		if s.cursor >= len(s.input) {
			return s.errorf(loc, "unterminated string literal")
		}
		c := s.input[s.cursor]

		if c == quote {
			if triple {
				if s.peekAt(1) == quote && s.peekAt(2) == quote {
					s.cursor += 3
					closeLiteral()
					return nil
				}
				segment.WriteByte(c)
				s.cursor++
				continue
			}
			s.cursor++
			closeLiteral()
			return nil
		}

		if !triple && c == '\n' {
			return s.errorf(loc, "unterminated string literal")
		}

		if !raw && c == '\\' {
			if s.cursor+1 >= len(s.input) {
				return s.errorf(loc, "unterminated string literal")
			}
			segment.WriteByte(unescape(s.input[s.cursor+1]))
			s.cursor += 2
			continue
		}

		if !raw && c == '$' {
			hadInterpolation = true
			s.emit(KStringInterpolation, s.pushString(segment.String()), loc)
			segment.Reset()
			s.cursor++

			if s.peek() == '{' {
				s.cursor++
				s.interp = append(s.interp, interpFrame{quote: quote, triple: triple})
				return s.scanInterpolatedExpr()
			}

			// Shorthand `$name`: the interpolated "expression" is
			// a single bare identifier, scanned inline with no
			// mode-stack frame needed.
			if err := s.scanIdentifier(); err != nil {
				return err
			}
			continue
		}

		segment.WriteByte(c)
		s.cursor++
	}
}

// scanInterpolatedExpr scans ordinary tokens for the body of a `${…}`
// until the matching `}`, then resumes string-literal scanning.
func (s *Scanner) scanInterpolatedExpr() error {
	for {
		if s.cursor >= len(s.input) {
			return s.errorf(s.loc(), "unterminated interpolated expression")
		}
		top := &s.interp[len(s.interp)-1]

		if s.peek() == '{' {
			top.braceDepth++
			s.emit(KLBrace, 0, s.loc())
			s.brackets = append(s.brackets, bracketEntry{kind: KLBrace, tokenIndex: len(s.tokens) - 1})
			s.cursor++
			continue
		}
		if s.peek() == '}' {
			if top.braceDepth == 0 {
				s.cursor++
				s.interp = s.interp[:len(s.interp)-1]
				return s.resumeStringLiteral(top.quote, top.triple)
			}
			top.braceDepth--
			if err := s.closeBracket(KLBrace, KRBrace); err != nil {
				return err
			}
			continue
		}
		if err := s.scanOne(); err != nil {
			return err
		}
	}
}

// resumeStringLiteral continues a string literal whose opening quote
// and triple-ness are carried by the popped interpFrame.
func (s *Scanner) resumeStringLiteral(quote byte, triple bool) error {
	loc := s.loc()
	var segment strings.Builder

	for {
		if s.cursor >= len(s.input) {
			return s.errorf(loc, "unterminated string literal")
		}
		c := s.input[s.cursor]

		if c == quote {
			if triple {
				if s.peekAt(1) == quote && s.peekAt(2) == quote {
					s.cursor += 3
					s.emit(KStringInterpolationEnd, s.pushString(segment.String()), loc)
					return nil
				}
				segment.WriteByte(c)
				s.cursor++
				continue
			}
			s.cursor++
			s.emit(KStringInterpolationEnd, s.pushString(segment.String()), loc)
			return nil
		}
		if !triple && c == '\n' {
			return s.errorf(loc, "unterminated string literal")
		}
		if c == '\\' {
			if s.cursor+1 >= len(s.input) {
				return s.errorf(loc, "unterminated string literal")
			}
			segment.WriteByte(unescape(s.input[s.cursor+1]))
			s.cursor += 2
			continue
		}
		if c == '$' {
			s.emit(KStringInterpolation, s.pushString(segment.String()), loc)
			segment.Reset()
			s.cursor++
			if s.peek() == '{' {
				s.cursor++
				s.interp = append(s.interp, interpFrame{quote: quote, triple: triple})
				return s.scanInterpolatedExpr()
			}
			if err := s.scanIdentifier(); err != nil {
				return err
			}
			continue
		}
		segment.WriteByte(c)
		s.cursor++
	}
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

// scanOperator scans punctuation, operators and brackets.
func (s *Scanner) scanOperator() error {
	loc := s.loc()
	c := s.peek()

	two := func(next byte, kind2 Kind, kind1 Kind) error {
		if s.peekAt(1) == next {
			s.cursor += 2
			s.emit(kind2, 0, loc)
			return nil
		}
		s.cursor++
		s.emit(kind1, 0, loc)
		return nil
	}

	switch c {
	case '(':
		return s.openBracket(KLParen, loc)
	case ')':
		return s.closeBracket(KLParen, KRParen)
	case '[':
		return s.openBracket(KLBracket, loc)
	case ']':
		return s.closeBracket(KLBracket, KRBracket)
	case '{':
		return s.openBracket(KLBrace, loc)
	case '}':
		return s.closeBracket(KLBrace, KRBrace)
	case '<':
		if s.peekAt(1) == '=' {
			s.cursor += 2
			s.emit(KLe, 0, loc)
			return nil
		}
		if s.peekAt(1) == '<' {
			if s.peekAt(2) == '=' {
				s.cursor += 3
				s.emit(KShlEq, 0, loc)
				return nil
			}
			s.cursor += 2
			s.emit(KShl, 0, loc)
			return nil
		}
		return s.openBracket(KLAngle, loc)
	case '>':
		// Always a single-char token; the parser disambiguates
		// >=, >>, >>= from adjacent kGtStart tokens (spec §4.4).
		s.cursor++
		if err := s.closeBracketOptional(KLAngle); err != nil {
			return err
		}
		return nil
	case ',':
		s.cursor++
		s.emit(KComma, 0, loc)
		return nil
	case ';':
		s.cursor++
		s.emit(KSemicolon, 0, loc)
		return nil
	case ':':
		s.cursor++
		s.emit(KColon, 0, loc)
		return nil
	case '.':
		if s.peekAt(1) == '.' && s.peekAt(2) == '.' {
			s.cursor += 3
			s.emit(KDotDotDot, 0, loc)
			return nil
		}
		if s.peekAt(1) == '.' {
			s.cursor += 2
			s.emit(KCascade, 0, loc)
			return nil
		}
		s.cursor++
		s.emit(KDot, 0, loc)
		return nil
	case '?':
		if s.peekAt(1) == '?' {
			if s.peekAt(2) == '=' {
				s.cursor += 3
				s.emit(KQuestionQuestionEq, 0, loc)
				return nil
			}
			s.cursor += 2
			s.emit(KQuestionQuestion, 0, loc)
			return nil
		}
		if s.peekAt(1) == '.' {
			s.cursor += 2
			s.emit(KQuestionDot, 0, loc)
			return nil
		}
		s.cursor++
		s.emit(KQuestion, 0, loc)
		return nil
	case '@':
		s.cursor++
		s.emit(KAt, 0, loc)
		return nil
	case '+':
		if s.peekAt(1) == '+' {
			s.cursor += 2
			s.emit(KPlusPlus, 0, loc)
			return nil
		}
		return two('=', KPlusEq, KPlus)
	case '-':
		if s.peekAt(1) == '-' {
			s.cursor += 2
			s.emit(KMinusMinus, 0, loc)
			return nil
		}
		return two('=', KMinusEq, KMinus)
	case '*':
		return two('=', KStarEq, KStar)
	case '/':
		return two('=', KSlashEq, KSlash)
	case '%':
		return two('=', KPercentEq, KPercent)
	case '~':
		if s.peekAt(1) == '/' {
			s.cursor += 2
			s.emit(KTildeSlash, 0, loc)
			return nil
		}
		s.cursor++
		s.emit(KTilde, 0, loc)
		return nil
	case '&':
		if s.peekAt(1) == '&' {
			if s.peekAt(2) == '=' {
				s.cursor += 3
				s.emit(KAmpAmpEq, 0, loc)
				return nil
			}
			s.cursor += 2
			s.emit(KAmpAmp, 0, loc)
			return nil
		}
		return two('=', KAmpEq, KAmp)
	case '|':
		if s.peekAt(1) == '|' {
			if s.peekAt(2) == '=' {
				s.cursor += 3
				s.emit(KPipePipeEq, 0, loc)
				return nil
			}
			s.cursor += 2
			s.emit(KPipePipe, 0, loc)
			return nil
		}
		return two('=', KPipeEq, KPipe)
	case '^':
		return two('=', KCaretEq, KCaret)
	case '!':
		return two('=', KBangEq, KBang)
	case '=':
		if s.peekAt(1) == '=' {
			s.cursor += 2
			s.emit(KEqEq, 0, loc)
			return nil
		}
		if s.peekAt(1) == '>' {
			s.cursor += 2
			s.emit(KArrow, 0, loc)
			return nil
		}
		s.cursor++
		s.emit(KEq, 0, loc)
		return nil
	default:
		return s.errorf(loc, "illegal character %q", c)
	}
}

func (s *Scanner) openBracket(kind Kind, loc source.Location) error {
	s.cursor++
	idx := s.emit(kind, 0, loc)
	s.brackets = append(s.brackets, bracketEntry{kind: kind, tokenIndex: idx})
	return nil
}

// closeBracket matches openKind against the stack top; mismatches are
// not fatal in the scanner (spec leaves that to the parser), so the
// close token is emitted with payload -1 and the stack is otherwise
// untouched.
func (s *Scanner) closeBracket(openKind, closeKind Kind) error {
	loc := s.loc()
	s.cursor++
	idx := s.emit(closeKind, -1, loc)

	if len(s.brackets) == 0 || s.brackets[len(s.brackets)-1].kind != openKind {
		return nil
	}
	top := s.brackets[len(s.brackets)-1]
	s.brackets = s.brackets[:len(s.brackets)-1]
	s.tokens[top.tokenIndex].Payload = int32(idx - top.tokenIndex)
	return nil
}

// closeBracketOptional is used by '>' which only acts as a closer
// when a KLAngle is actually on top of the stack.
func (s *Scanner) closeBracketOptional(openKind Kind) error {
	idx := len(s.tokens)
	payload := int32(-1)
	if len(s.brackets) > 0 && s.brackets[len(s.brackets)-1].kind == openKind {
		top := s.brackets[len(s.brackets)-1]
		s.brackets = s.brackets[:len(s.brackets)-1]
		s.tokens[top.tokenIndex].Payload = int32(idx - top.tokenIndex)
		payload = 0
	}
	s.tokens = append(s.tokens, Token{Kind: KGtStart, Payload: payload, Location: s.table.LocationAt(s.base, s.cursor-1)})
	return nil
}
