// Package parser implements the predictive recursive-descent parser
// (spec §4.5 "Parser") that turns a scanner.Token stream into an AST
// via ast.Builder. The parser never constructs *ast.Node directly;
// every production ends with a Builder Do* call, so push/pop counts
// alone are enough to verify grammar balance (spec §8 "Parser
// balance").
//
// Errors are fatal (spec §4.5 "On unexpected token, fails with
// kParseError... fatal"): internal parse functions call p.fail, which
// panics with *ParseError; ParseUnit is the only place that recovers,
// converting the panic back into a normal Go error so the rest of the
// compiler never has to reason about unwinding through the parser's
// call stack.
package parser

import (
	"fmt"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/scanner"
	"github.com/corelang/corec/internal/source"
	"github.com/corelang/corec/internal/zone"
)

// ParseError is raised for a token mismatch (spec §7, kParseError).
type ParseError struct {
	Message  string
	Location source.Location
	Table    *source.Table
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Table.Excerpt(e.Location), e.Message)
}

// Parser turns one file's Location into an AST compilation unit,
// implementing loader.Parser.
type Parser struct {
	table  *source.Table
	idents *scanner.IdentifierTable
	arena  *zone.Arena[ast.Node]
}

// New creates a Parser sharing table, idents, and arena with the rest
// of one compile.
func New(table *source.Table, idents *scanner.IdentifierTable, arena *zone.Arena[ast.Node]) *Parser {
	return &Parser{table: table, idents: idents, arena: arena}
}

// ParseUnit scans and parses the file that loc resolves into.
func (p *Parser) ParseUnit(loc source.Location) (unit *ast.Node, err error) {
	sc := scanner.New(p.table, loc, p.idents)
	res, scanErr := sc.Scan()
	if scanErr != nil {
		return nil, scanErr
	}

	up := &unitParser{
		tokens:   res.Tokens,
		integers: res.Integers,
		doubles:  res.Doubles,
		strings:  res.Strings,
		b:        ast.NewBuilder(p.arena),
		table:    p.table,
		idents:   p.idents,
	}

	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(*ParseError); ok {
				err = pe
				return
			}
			panic(r)
		}
	}()
	unit = up.parseCompilationUnit()
	return unit, nil
}

// unitParser holds one file's token stream and the zero-indexed
// cursor the grammar productions advance. The whole token array is
// materialized up front by the scanner, so lookahead snapshot/restore
// (spec §4.5 "optional lookahead guards that snapshot and restore the
// stream position") is just saving and restoring an int.
type unitParser struct {
	tokens   []scanner.Token
	integers []int64
	doubles  []float64
	strings  []string

	pos int
	b   *ast.Builder

	table  *source.Table
	idents *scanner.IdentifierTable
}

func (p *unitParser) cur() scanner.Token {
	if p.pos >= len(p.tokens) {
		return scanner.Token{Kind: scanner.KEof}
	}
	return p.tokens[p.pos]
}

func (p *unitParser) kindAt(n int) scanner.Kind {
	if p.pos+n >= len(p.tokens) {
		return scanner.KEof
	}
	return p.tokens[p.pos+n].Kind
}

// gtOperatorAt reports whether the token n ahead is a `>` in operator
// position: the scanner gives the matched close of a type-argument
// list a non-negative bracket payload, and everything else -1 (spec
// §4.4 kGtStart disambiguation), so the payload alone tells an
// operator from a generic close.
func (p *unitParser) gtOperatorAt(n int) bool {
	if p.pos+n >= len(p.tokens) {
		return false
	}
	tok := p.tokens[p.pos+n]
	return tok.Kind == scanner.KGtStart && tok.Payload < 0
}

func (p *unitParser) check(k scanner.Kind) bool { return p.cur().Kind == k }

func (p *unitParser) advance() scanner.Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

// accept consumes and returns true if the current token is k.
func (p *unitParser) accept(k scanner.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

// expect consumes a token of kind k or fails with kParseError naming
// expected vs. found (spec §4.5).
func (p *unitParser) expect(k scanner.Kind, what string) scanner.Token {
	if !p.check(k) {
		p.fail(p.cur().Location, "expected %s, found token kind %d", what, p.cur().Kind)
	}
	return p.advance()
}

// mark/reset implement the lookahead guard: snapshot and restore the
// stream position (spec §4.5).
func (p *unitParser) mark() int       { return p.pos }
func (p *unitParser) reset(mark int)  { p.pos = mark }

func (p *unitParser) fail(loc source.Location, format string, args ...any) {
	panic(&ParseError{Message: fmt.Sprintf(format, args...), Location: loc, Table: p.table})
}

// allocNode builds a fresh node through the Builder's arena without
// disturbing the pushdown stack (push immediately followed by pop),
// used wherever the grammar needs a node constructed directly rather
// than combined from already-parsed stack operands (type references,
// catch clauses' exception-class node, etc.).
func (p *unitParser) allocNode(kind ast.Kind, loc source.Location) *ast.Node {
	n := p.b.Push(kind, loc)
	p.b.PopAny()
	return n
}

// ---- top level -------------------------------------------------

func (p *unitParser) parseCompilationUnit() *ast.Node {
	loc := p.cur().Location
	count := 0
	for !p.check(scanner.KEof) {
		p.parseTopLevelDecl()
		count++
	}
	return p.b.DoCompilationUnit(loc, count)
}

func (p *unitParser) parseTopLevelDecl() {
	switch {
	case p.check(scanner.KImport):
		p.parseImport()
	case p.check(scanner.KExport):
		p.parseExport()
	case p.check(scanner.KPart) && p.kindAt(1) == scanner.KOf:
		p.parsePartOf()
	case p.check(scanner.KPart):
		p.parsePart()
	case p.check(scanner.KClass):
		p.parseClass()
	case p.check(scanner.KTypedef):
		p.parseTypedef()
	default:
		p.parseTopLevelMethodOrVar()
	}
}

func (p *unitParser) parseImport() {
	loc := p.advance().Location // 'import'
	uri := p.expectStringLiteral()
	var prefixID int32
	if p.accept(scanner.KAs) {
		prefixID = p.expect(scanner.KIdentifier, "import prefix").Payload
	}
	var combinators []int32
	if p.check(scanner.KShow) || p.check(scanner.KHide) {
		p.advance()
		combinators = append(combinators, p.expect(scanner.KIdentifier, "identifier").Payload)
		for p.accept(scanner.KComma) {
			combinators = append(combinators, p.expect(scanner.KIdentifier, "identifier").Payload)
		}
	}
	p.expect(scanner.KSemicolon, ";")
	p.b.DoImport(loc, uri, prefixID, combinators)
}

func (p *unitParser) parseExport() {
	loc := p.advance().Location // 'export'
	uri := p.expectStringLiteral()
	for p.check(scanner.KShow) || p.check(scanner.KHide) {
		p.advance()
		p.expect(scanner.KIdentifier, "identifier")
		for p.accept(scanner.KComma) {
			p.expect(scanner.KIdentifier, "identifier")
		}
	}
	p.expect(scanner.KSemicolon, ";")
	p.b.DoExport(loc, uri)
}

func (p *unitParser) parsePart() {
	loc := p.advance().Location // 'part'
	uri := p.expectStringLiteral()
	p.expect(scanner.KSemicolon, ";")
	p.b.DoPart(loc, uri)
}

func (p *unitParser) parsePartOf() {
	loc := p.advance().Location // 'part'
	p.advance()                 // 'of'
	name := p.expect(scanner.KIdentifier, "library name")
	libName := fmt.Sprintf("%d", name.Payload)
	for p.accept(scanner.KDot) {
		p.expect(scanner.KIdentifier, "identifier")
	}
	p.expect(scanner.KSemicolon, ";")
	p.b.DoPartOf(loc, libName)
}

func (p *unitParser) parseTypedef() {
	loc := p.advance().Location // 'typedef'
	name := p.expect(scanner.KIdentifier, "typedef name")
	p.skipOptionalGenericParams()
	if p.accept(scanner.KEq) {
		p.skipTypeAnnotation()
	} else if p.check(scanner.KLParen) {
		p.parseParams()
	}
	p.expect(scanner.KSemicolon, ";")
	p.b.DoTypedef(loc, name.Payload)
}

// expectStringLiteral consumes a plain (non-interpolated) string
// literal token, used for URIs where interpolation is meaningless.
func (p *unitParser) expectStringLiteral() string {
	tok := p.expect(scanner.KString, "string literal")
	return p.strings[tok.Payload]
}

// ---- classes ----------------------------------------------------

func (p *unitParser) parseClass() {
	loc := p.advance().Location // 'class'
	nameTok := p.expect(scanner.KIdentifier, "class name")
	p.skipOptionalGenericParams()

	var superRef *ast.Node
	if p.accept(scanner.KExtends) {
		superRef = p.parseTypeRef()
	}
	var mixins []*ast.Node
	if p.accept(scanner.KWith) {
		mixins = append(mixins, p.parseTypeRef())
		for p.accept(scanner.KComma) {
			mixins = append(mixins, p.parseTypeRef())
		}
	}
	var impls []*ast.Node
	if p.accept(scanner.KImplements) {
		impls = append(impls, p.parseTypeRef())
		for p.accept(scanner.KComma) {
			impls = append(impls, p.parseTypeRef())
		}
	}

	p.expect(scanner.KLBrace, "{")
	count := 0
	for !p.check(scanner.KRBrace) {
		p.parseClassMember(nameTok.Payload)
		count++
	}
	p.expect(scanner.KRBrace, "}")

	p.b.DoClass(loc, nameTok.Payload, count, superRef, mixins, impls)
}

// parseTypeRef parses a (possibly generic, possibly dotted) type name
// as a plain Identifier node; spec §4.5 "Type annotations are
// recognized but erased (the AST has no type info)" — a type
// reference used as a super/mixin/implements clause keeps only the
// head name id, which is all the loader/compiler ever resolve against.
func (p *unitParser) parseTypeRef() *ast.Node {
	tok := p.expect(scanner.KIdentifier, "type name")
	loc := tok.Location
	n := p.allocNode(ast.KindIdentifier, loc)
	n.NameID = tok.Payload
	p.skipOptionalGenericArgs()
	return n
}

// skipOptionalGenericParams/Args use the scanner's bracket-match
// payload to skip a `<...>` list in O(1) (spec §3 "Token" / §4.4
// "allowing the parser to skip type-argument lists in O(1)").
func (p *unitParser) skipOptionalGenericParams() { p.skipAngleList() }
func (p *unitParser) skipOptionalGenericArgs()   { p.skipAngleList() }

func (p *unitParser) skipAngleList() {
	if !p.check(scanner.KLAngle) {
		return
	}
	open := p.cur()
	if open.Payload <= 0 {
		// Unmatched or zero-distance: fall back to a single token
		// skip rather than looping forever.
		p.advance()
		return
	}
	p.pos += int(open.Payload) + 1
}

func (p *unitParser) parseClassMember(classNameID int32) {
	loc := p.cur().Location
	static := p.accept(scanner.KStatic)

	if p.check(scanner.KFactory) {
		p.parseFactory(loc, classNameID)
		return
	}

	isGetter := false
	isSetter := false
	if p.check(scanner.KGet) && p.kindAt(1) == scanner.KIdentifier {
		p.advance()
		isGetter = true
	} else if p.check(scanner.KSet) && p.kindAt(1) == scanner.KIdentifier {
		p.advance()
		isSetter = true
	}

	if p.check(scanner.KOperator) {
		p.parseOperatorMethod(loc, static)
		return
	}

	// `const` may prefix either a const constructor or a const field,
	// so it is consumed before the constructor check.
	isConst := p.accept(scanner.KConst)

	// Constructor: `ClassName(...)` or `ClassName.named(...)`.
	if !static && !isGetter && !isSetter && p.check(scanner.KIdentifier) && p.cur().Payload == classNameID &&
		(p.kindAt(1) == scanner.KLParen || p.kindAt(1) == scanner.KDot) {
		p.parseConstructor(loc, classNameID, isConst)
		return
	}

	final := p.accept(scanner.KFinal)
	isVar := p.accept(scanner.KVar)
	if !final && !isVar && !isConst {
		p.maybeSkipFieldType()
	}

	nameTok := p.expect(scanner.KIdentifier, "member name")

	if p.check(scanner.KLParen) || p.check(scanner.KLAngle) {
		p.skipOptionalGenericParams()
		params := p.parseParams()
		hasBody := p.parseMethodBodyPresence()
		m := p.b.DoMethod(loc, nameTok.Payload, params, hasBody, static, false, isConst)
		m.IsGetter = isGetter
		m.IsSetter = isSetter
		return
	}

	// Field declaration, possibly comma-separated.
	count := 0
	p.parseFieldDeclarator(nameTok.Payload, final, isConst)
	count++
	for p.accept(scanner.KComma) {
		t := p.expect(scanner.KIdentifier, "field name")
		p.parseFieldDeclarator(t.Payload, final, isConst)
		count++
	}
	p.expect(scanner.KSemicolon, ";")
	p.b.DoVariableDeclarationStatement(loc, count)
}

func (p *unitParser) parseFieldDeclarator(nameID int32, final, isConst bool) {
	hasInit := p.accept(scanner.KEq)
	if hasInit {
		p.parseAssignment()
	}
	n := p.b.DoVariableDeclaration(p.cur().Location, nameID, hasInit, ast.ParamRequired, final)
	n.IsConst = isConst
}

// parseMethodBodyPresence consumes `;`, `=> expr ;`, or a `{ ... }`
// block, leaving exactly the block (if any) on the stack for DoMethod
// to pop, and reports whether a body was pushed.
func (p *unitParser) parseMethodBodyPresence() bool {
	switch {
	case p.accept(scanner.KSemicolon):
		return false
	case p.accept(scanner.KArrow):
		loc := p.cur().Location
		p.parseAssignment()
		p.expect(scanner.KSemicolon, ";")
		stmtLoc := loc
		p.b.DoReturn(stmtLoc, true)
		p.b.DoBlock(stmtLoc, 1)
		return true
	default:
		p.parseBlock()
		return true
	}
}

func (p *unitParser) parseFactory(loc source.Location, classNameID int32) {
	p.advance() // 'factory'
	isConst := p.accept(scanner.KConst)
	p.expect(scanner.KIdentifier, "factory constructor name")
	var subNameID int32
	if p.accept(scanner.KDot) {
		subNameID = p.expect(scanner.KIdentifier, "named constructor name").Payload
	}
	params := p.parseParams()
	hasBody := p.parseMethodBodyPresence()
	nameID := classNameID
	m := p.b.DoMethod(loc, nameID, params, hasBody, false, true, isConst)
	if subNameID != 0 {
		m.Binding = subNameID
	}
}

func (p *unitParser) parseConstructor(loc source.Location, classNameID int32, isConst bool) {
	p.advance() // class name token
	var subNameID int32
	if p.accept(scanner.KDot) {
		subNameID = p.expect(scanner.KIdentifier, "named constructor name").Payload
	}
	params := p.parseParams()
	var inits []*ast.FieldInit
	var super *ast.SuperCall
	if p.accept(scanner.KColon) {
		inits, super = p.parseInitializerList()
	}
	hasBody := p.parseMethodBodyPresence()
	m := p.b.DoMethod(loc, classNameID, params, hasBody, false, false, isConst)
	if subNameID != 0 {
		m.Binding = subNameID
	}
	m.Initializers = inits
	m.Super = super
}

// parseInitializerList consumes a constructor's `: x = v, super(...)`
// initializer clauses, building the target/value pairs and the
// super-call's argument nodes for the compiler's constructor codegen to
// run directly (spec glossary "Initializer list").
func (p *unitParser) parseInitializerList() ([]*ast.FieldInit, *ast.SuperCall) {
	var inits []*ast.FieldInit
	var super *ast.SuperCall
	for {
		if p.check(scanner.KSuper) {
			p.advance()
			var namedCtorID int32
			if p.accept(scanner.KDot) {
				namedCtorID = p.expect(scanner.KIdentifier, "named constructor name").Payload
			}
			argCount, namedLabels := p.parseArgList()
			args := p.b.PopN(argCount)
			super = &ast.SuperCall{NamedCtorID: namedCtorID, Args: args, NamedLabels: namedLabels}
		} else {
			nameTok := p.expect(scanner.KIdentifier, "initializer target")
			p.expect(scanner.KEq, "=")
			p.parseAssignment()
			value := p.b.PopAny()
			inits = append(inits, &ast.FieldInit{FieldNameID: nameTok.Payload, Value: value})
		}
		if !p.accept(scanner.KComma) {
			break
		}
	}
	return inits, super
}

// operatorSpellings maps an overloadable operator token back to its
// selector spelling, so `operator +` and a `+` call site intern the
// same identifier id.
var operatorSpellings = map[scanner.Kind]string{
	scanner.KPlus: "+", scanner.KMinus: "-", scanner.KStar: "*",
	scanner.KSlash: "/", scanner.KPercent: "%", scanner.KTildeSlash: "~/",
	scanner.KLAngle: "<", scanner.KGtStart: ">", scanner.KLe: "<=",
	scanner.KEqEq: "==", scanner.KAmp: "&",
	scanner.KPipe: "|", scanner.KCaret: "^", scanner.KShl: "<<",
	scanner.KTilde: "~",
}

func (p *unitParser) parseOperatorMethod(loc source.Location, static bool) {
	p.advance() // 'operator'
	opTok := p.advance()
	var spelling string
	if opTok.Kind == scanner.KLBracket {
		// `operator []` / `operator []=` arrive as separate tokens.
		p.expect(scanner.KRBracket, "]")
		spelling = "[]"
		if p.accept(scanner.KEq) {
			spelling = "[]="
		}
	} else if opTok.Kind == scanner.KGtStart && p.gtOperatorAt(0) {
		// `operator >>` arrives as two kGtStart tokens.
		p.advance()
		spelling = ">>"
	} else if opTok.Kind == scanner.KGtStart && p.check(scanner.KEq) {
		// `operator >=` arrives as kGtStart followed by `=`.
		p.advance()
		spelling = ">="
	} else {
		var ok bool
		spelling, ok = operatorSpellings[opTok.Kind]
		if !ok {
			p.fail(opTok.Location, "expected an overloadable operator")
		}
	}
	nameID := p.idents.Intern([]byte(spelling))
	params := p.parseParams()
	hasBody := p.parseMethodBodyPresence()
	p.b.DoMethod(loc, nameID, params, hasBody, static, false, false)
}

// maybeSkipFieldType consumes a leading type annotation when the
// member declaration omits `var`/`final`/`const` (spec §4.5 "Type
// annotations are recognized but erased"): a field/method whose first
// token is an identifier/void/dynamic followed by ANOTHER identifier
// (the real declared name) means the first one was a type.
func (p *unitParser) maybeSkipFieldType() {
	if !(p.check(scanner.KIdentifier) || p.check(scanner.KVoid) || p.check(scanner.KDynamic)) {
		return
	}
	mark := p.mark()
	p.advance()
	p.skipOptionalGenericArgs()
	p.accept(scanner.KQuestion)
	if !p.check(scanner.KIdentifier) {
		p.reset(mark)
	}
}

// skipTypeAnnotation consumes one full type reference (used in
// typedef RHS and cast/is targets), erasing it entirely.
func (p *unitParser) skipTypeAnnotation() {
	if p.check(scanner.KVoid) || p.check(scanner.KDynamic) {
		p.advance()
		return
	}
	p.expect(scanner.KIdentifier, "type name")
	p.skipOptionalGenericArgs()
	p.accept(scanner.KQuestion)
}

// ---- top-level methods / variables -------------------------------

func (p *unitParser) parseTopLevelMethodOrVar() {
	loc := p.cur().Location
	isConst := p.accept(scanner.KConst)
	final := p.accept(scanner.KFinal)
	isVar := p.accept(scanner.KVar)
	if !final && !isVar && !isConst {
		p.maybeSkipFieldType()
	}
	nameTok := p.expect(scanner.KIdentifier, "top-level declaration name")

	if p.check(scanner.KLParen) || p.check(scanner.KLAngle) {
		p.skipOptionalGenericParams()
		params := p.parseParams()
		hasBody := p.parseMethodBodyPresence()
		p.b.DoMethod(loc, nameTok.Payload, params, hasBody, true, false, isConst)
		return
	}

	count := 0
	p.parseFieldDeclarator(nameTok.Payload, final, isConst)
	count++
	for p.accept(scanner.KComma) {
		t := p.expect(scanner.KIdentifier, "variable name")
		p.parseFieldDeclarator(t.Payload, final, isConst)
		count++
	}
	p.expect(scanner.KSemicolon, ";")
	p.b.DoVariableDeclarationStatement(loc, count)
}

// ---- params -------------------------------------------------------

func (p *unitParser) parseParams() []*ast.Node {
	p.expect(scanner.KLParen, "(")
	var params []*ast.Node
	for !p.check(scanner.KRParen) {
		switch {
		case p.check(scanner.KLBrace):
			p.advance()
			for !p.check(scanner.KRBrace) {
				params = append(params, p.parseParam(ast.ParamNamedOptional))
				if !p.accept(scanner.KComma) {
					break
				}
			}
			p.expect(scanner.KRBrace, "}")
		case p.check(scanner.KLBracket):
			p.advance()
			for !p.check(scanner.KRBracket) {
				params = append(params, p.parseParam(ast.ParamPositionalOptional))
				if !p.accept(scanner.KComma) {
					break
				}
			}
			p.expect(scanner.KRBracket, "]")
		default:
			params = append(params, p.parseParam(ast.ParamRequired))
			if !p.accept(scanner.KComma) {
				p.expect(scanner.KRParen, ")")
				return params
			}
			continue
		}
	}
	p.expect(scanner.KRParen, ")")
	return params
}

func (p *unitParser) parseParam(mod ast.ParamModifier) *ast.Node {
	loc := p.cur().Location
	final := p.accept(scanner.KFinal)
	p.maybeSkipFieldType()

	thisBind := false
	if p.check(scanner.KThis) && p.kindAt(1) == scanner.KDot {
		p.advance()
		p.advance()
		thisBind = true
	}
	nameTok := p.expect(scanner.KIdentifier, "parameter name")

	n := p.allocNode(ast.KindVariableDeclaration, loc)
	n.NameID = nameTok.Payload
	n.Modifiers = mod
	n.IsFinal = final
	n.ThisBind = thisBind
	if p.accept(scanner.KEq) {
		n.A = p.parseExprNode()
	}
	return n
}

// parseExprNode parses one assignment-level expression and pops it
// back off the stack for direct embedding in a node field built
// outside the normal Do* combinator flow (default parameter values,
// catch-clause exception types, etc.).
func (p *unitParser) parseExprNode() *ast.Node {
	p.parseAssignment()
	return p.b.PopAny()
}

// ---- statements -----------------------------------------------------

func (p *unitParser) parseBlock() *ast.Node {
	loc := p.expect(scanner.KLBrace, "{").Location
	count := 0
	for !p.check(scanner.KRBrace) {
		p.parseStatement()
		count++
	}
	p.expect(scanner.KRBrace, "}")
	return p.b.DoBlock(loc, count)
}

func (p *unitParser) parseStatement() {
	loc := p.cur().Location
	switch {
	case p.check(scanner.KLBrace):
		p.parseBlock()
	case p.check(scanner.KIf):
		p.parseIf()
	case p.check(scanner.KFor):
		p.parseFor()
	case p.check(scanner.KWhile):
		p.parseWhile()
	case p.check(scanner.KDo):
		p.parseDoWhile()
	case p.check(scanner.KBreak):
		p.advance()
		var labelID int32
		if p.check(scanner.KIdentifier) {
			labelID = p.advance().Payload
		}
		p.expect(scanner.KSemicolon, ";")
		p.b.DoBreak(loc, labelID)
	case p.check(scanner.KContinue):
		p.advance()
		var labelID int32
		if p.check(scanner.KIdentifier) {
			labelID = p.advance().Payload
		}
		p.expect(scanner.KSemicolon, ";")
		p.b.DoContinue(loc, labelID)
	case p.check(scanner.KReturn):
		p.advance()
		hasValue := !p.check(scanner.KSemicolon)
		if hasValue {
			p.parseAssignment()
		}
		p.expect(scanner.KSemicolon, ";")
		p.b.DoReturn(loc, hasValue)
	case p.check(scanner.KAssert):
		p.advance()
		p.expect(scanner.KLParen, "(")
		p.parseAssignment()
		hasMsg := p.accept(scanner.KComma)
		if hasMsg {
			p.parseAssignment()
		}
		p.expect(scanner.KRParen, ")")
		p.expect(scanner.KSemicolon, ";")
		p.b.DoAssert(loc, hasMsg)
	case p.check(scanner.KRethrow):
		p.advance()
		p.expect(scanner.KSemicolon, ";")
		p.b.DoRethrow(loc)
	case p.check(scanner.KSwitch):
		p.parseSwitch()
	case p.check(scanner.KTry):
		p.parseTry()
	case p.check(scanner.KSemicolon):
		p.advance()
		p.b.DoEmptyStatement(loc)
	case p.check(scanner.KIdentifier) && p.kindAt(1) == scanner.KColon:
		labelID := p.advance().Payload
		p.advance() // ':'
		p.parseStatement()
		p.b.DoLabelled(loc, labelID)
	case p.looksLikeVarDeclStatement():
		p.parseVarDeclStatement()
	default:
		p.parseExpressionStatement()
	}
}

func (p *unitParser) parseExpressionStatement() {
	loc := p.cur().Location
	p.parseAssignment()
	p.expect(scanner.KSemicolon, ";")
	p.b.DoExpressionStatement(loc)
}

// looksLikeVarDeclStatement decides, via a lookahead guard (spec
// §4.5), whether the statement ahead is a local variable declaration
// rather than an expression statement.
func (p *unitParser) looksLikeVarDeclStatement() bool {
	if p.check(scanner.KVar) || p.check(scanner.KFinal) || p.check(scanner.KConst) {
		return true
	}
	if !(p.check(scanner.KIdentifier) || p.check(scanner.KVoid) || p.check(scanner.KDynamic)) {
		return false
	}
	mark := p.mark()
	defer p.reset(mark)
	p.advance()
	p.skipOptionalGenericArgs()
	p.accept(scanner.KQuestion)
	return p.check(scanner.KIdentifier)
}

func (p *unitParser) parseVarDeclStatement() {
	loc := p.cur().Location
	isConst := p.accept(scanner.KConst)
	final := p.accept(scanner.KFinal)
	isVar := p.accept(scanner.KVar)
	if !final && !isVar && !isConst {
		p.maybeSkipFieldType()
	}
	count := 0
	for {
		nameTok := p.expect(scanner.KIdentifier, "variable name")
		p.parseFieldDeclarator(nameTok.Payload, final, isConst)
		count++
		if !p.accept(scanner.KComma) {
			break
		}
	}
	p.expect(scanner.KSemicolon, ";")
	p.b.DoVariableDeclarationStatement(loc, count)
}

func (p *unitParser) parseIf() {
	loc := p.advance().Location // 'if'
	p.expect(scanner.KLParen, "(")
	p.parseAssignment()
	p.expect(scanner.KRParen, ")")
	p.parseStatement()
	hasElse := false
	if p.accept(scanner.KElse) {
		p.parseStatement()
		hasElse = true
	}
	p.b.DoIf(loc, hasElse)
}

func (p *unitParser) parseWhile() {
	loc := p.advance().Location // 'while'
	p.expect(scanner.KLParen, "(")
	p.parseAssignment()
	p.expect(scanner.KRParen, ")")
	p.parseStatement()
	p.b.DoWhile(loc)
}

func (p *unitParser) parseDoWhile() {
	loc := p.advance().Location // 'do'
	p.parseStatement()
	p.expect(scanner.KWhile, "while")
	p.expect(scanner.KLParen, "(")
	p.parseAssignment()
	p.expect(scanner.KRParen, ")")
	p.expect(scanner.KSemicolon, ";")
	p.b.DoDoWhile(loc)
}

func (p *unitParser) parseFor() {
	loc := p.advance().Location // 'for'
	p.expect(scanner.KLParen, "(")

	// for-in: one loop-variable declaration followed by `in`.
	if p.looksLikeForIn() {
		final := p.accept(scanner.KFinal)
		isVar := p.accept(scanner.KVar)
		if !final && !isVar {
			p.maybeSkipFieldType()
		}
		nameTok := p.expect(scanner.KIdentifier, "for-in variable")
		p.b.DoVariableDeclaration(loc, nameTok.Payload, false, ast.ParamRequired, final)
		p.expect(scanner.KIn, "in")
		p.parseAssignment()
		p.expect(scanner.KRParen, ")")
		p.parseStatement()
		p.b.DoForIn(loc)
		return
	}

	hasInit := !p.check(scanner.KSemicolon)
	if hasInit {
		if p.looksLikeVarDeclStatement() {
			p.parseVarDeclInitClause()
		} else {
			p.parseAssignment()
			p.b.DoExpressionStatement(loc)
		}
	}
	p.expect(scanner.KSemicolon, ";")

	hasCond := !p.check(scanner.KSemicolon)
	if hasCond {
		p.parseAssignment()
	}
	p.expect(scanner.KSemicolon, ";")

	hasIncr := !p.check(scanner.KRParen)
	if hasIncr {
		p.parseAssignment()
		for p.accept(scanner.KComma) {
			p.parseAssignment()
			p.b.DoBinary(loc, int16(scanner.KComma)) // sequence two increment expressions into one
		}
	}
	p.expect(scanner.KRParen, ")")
	p.parseStatement()
	p.b.DoFor(loc, hasInit, hasCond, hasIncr)
}

// parseVarDeclInitClause parses a for-loop's init clause as a var
// declaration statement without consuming the trailing `;` (the
// caller does, uniformly with the other two clauses).
func (p *unitParser) parseVarDeclInitClause() {
	loc := p.cur().Location
	final := p.accept(scanner.KFinal)
	isVar := p.accept(scanner.KVar)
	if !final && !isVar {
		p.maybeSkipFieldType()
	}
	count := 0
	for {
		nameTok := p.expect(scanner.KIdentifier, "variable name")
		p.parseFieldDeclarator(nameTok.Payload, final, false)
		count++
		if !p.accept(scanner.KComma) {
			break
		}
	}
	p.b.DoVariableDeclarationStatement(loc, count)
}

func (p *unitParser) looksLikeForIn() bool {
	mark := p.mark()
	defer p.reset(mark)
	final := p.accept(scanner.KFinal)
	isVar := p.accept(scanner.KVar)
	if !(p.check(scanner.KIdentifier) || p.check(scanner.KVoid) || p.check(scanner.KDynamic)) {
		return false
	}
	p.advance()
	if (final || isVar) && p.check(scanner.KIn) {
		return true // untyped loop variable: `var x in`, `final x in`
	}
	p.skipOptionalGenericArgs()
	p.accept(scanner.KQuestion)
	if !p.check(scanner.KIdentifier) {
		return false
	}
	p.advance()
	return p.check(scanner.KIn)
}

func (p *unitParser) parseSwitch() {
	loc := p.advance().Location // 'switch'
	p.expect(scanner.KLParen, "(")
	p.parseAssignment()
	p.expect(scanner.KRParen, ")")
	p.expect(scanner.KLBrace, "{")
	count := 0
	for !p.check(scanner.KRBrace) {
		caseLoc := p.cur().Location
		hasLabel := false
		if p.accept(scanner.KCase) {
			p.parseAssignment()
			hasLabel = true
		} else {
			p.expect(scanner.KDefault, "default")
		}
		p.expect(scanner.KColon, ":")
		stmtCount := 0
		for !p.check(scanner.KCase) && !p.check(scanner.KDefault) && !p.check(scanner.KRBrace) {
			p.parseStatement()
			stmtCount++
		}
		p.b.DoCase(caseLoc, hasLabel, stmtCount)
		count++
	}
	p.expect(scanner.KRBrace, "}")
	p.b.DoSwitch(loc, count)
}

func (p *unitParser) parseTry() {
	loc := p.advance().Location // 'try'
	p.parseBlock()
	catchCount := 0
	for p.check(scanner.KCatch) || p.check(scanner.KOn) {
		p.parseCatch()
		catchCount++
	}
	hasFinally := false
	if p.accept(scanner.KFinally) {
		p.parseBlock()
		hasFinally = true
	}
	p.b.DoTry(loc, hasFinally, catchCount)
}

func (p *unitParser) parseCatch() {
	loc := p.cur().Location
	var exceptionClass *ast.Node
	if p.accept(scanner.KOn) {
		exceptionClass = p.parseTypeRef()
	}
	hasVar := false
	if p.accept(scanner.KCatch) {
		p.expect(scanner.KLParen, "(")
		nameTok := p.expect(scanner.KIdentifier, "exception variable")
		p.b.DoVariableDeclaration(loc, nameTok.Payload, false, ast.ParamRequired, false)
		hasVar = true
		if p.accept(scanner.KComma) {
			p.expect(scanner.KIdentifier, "stack trace variable")
		}
		p.expect(scanner.KRParen, ")")
	}
	p.parseBlock()
	p.b.DoCatch(loc, hasVar, exceptionClass)
}

// ---- expressions ----------------------------------------------------
//
// Precedence climbs, loosest to tightest, mirroring spec §4.5's
// precedence table: assignment > cascade > conditional > if-null >
// logical-or > logical-and > bitwise-or > bitwise-xor > bitwise-and >
// equality > relational (is/as included) > shift > additive >
// multiplicative > unary > postfix > primary.

func (p *unitParser) parseAssignment() {
	loc := p.cur().Location
	p.parseCascadeOrConditional()
	if op, width, ok := p.assignOpKind(); ok {
		for i := 0; i < width; i++ {
			p.advance()
		}
		p.parseAssignment()
		p.b.DoAssign(loc, int16(op))
	}
}

// assignOpKind recognizes an assignment operator at the cursor,
// returning how many tokens it spans: every compound operator is one
// scanner token except `>>=`, which arrives as two operator-position
// kGtStart tokens and a `=` (spec §4.4).
func (p *unitParser) assignOpKind() (scanner.Kind, int, bool) {
	switch p.cur().Kind {
	case scanner.KEq, scanner.KPlusEq, scanner.KMinusEq, scanner.KStarEq, scanner.KSlashEq,
		scanner.KPercentEq, scanner.KAmpEq, scanner.KPipeEq, scanner.KCaretEq, scanner.KShlEq,
		scanner.KAmpAmpEq, scanner.KPipePipeEq, scanner.KQuestionQuestionEq:
		return p.cur().Kind, 1, true
	}
	if p.gtOperatorAt(0) && p.gtOperatorAt(1) && p.kindAt(2) == scanner.KEq {
		return scanner.KShrEq, 3, true
	}
	return 0, 0, false
}

// parseCascadeOrConditional parses one conditional expression and, if
// followed by `..`, wraps it as the shared receiver of a cascade
// (spec §4.5 precedence table "cascade"; §9 glossary "Cascade").
func (p *unitParser) parseCascadeOrConditional() {
	p.parseConditional()
	if !p.check(scanner.KCascade) {
		return
	}
	loc := p.cur().Location
	receiver := p.b.PopAny()
	count := 0
	for p.accept(scanner.KCascade) {
		p.b.PushNode(receiver)
		p.parseCascadeSection(receiver)
		count++
	}
	p.b.DoCascade(loc, receiver, count)
}

// parseCascadeSection parses exactly one `.member`, `.member(args)`,
// or `[index]` selector applied to receiver (already pushed via
// PushNode), with an optional trailing assignment.
func (p *unitParser) parseCascadeSection(receiver *ast.Node) {
	loc := p.cur().Location
	switch {
	case p.accept(scanner.KDot):
		nameTok := p.expect(scanner.KIdentifier, "member name")
		if p.check(scanner.KLParen) {
			argCount, namedLabels := p.parseArgList()
			p.b.DoInvoke(loc, argCount, nameTok.Payload, namedLabels)
		} else {
			p.b.DoDot(loc, nameTok.Payload)
		}
	case p.check(scanner.KLBracket):
		p.advance()
		p.parseAssignment()
		p.expect(scanner.KRBracket, "]")
		p.b.DoIndex(loc)
	default:
		p.fail(loc, "expected cascade section after '..'")
	}
	if op, width, ok := p.assignOpKind(); ok {
		for i := 0; i < width; i++ {
			p.advance()
		}
		p.parseAssignment()
		p.b.DoAssign(loc, int16(op))
	}
}

func (p *unitParser) parseConditional() {
	p.parseIfNull()
	if p.accept(scanner.KQuestion) {
		loc := p.cur().Location
		p.parseAssignment()
		p.expect(scanner.KColon, ":")
		p.parseAssignment()
		p.b.DoConditional(loc)
	}
}

func (p *unitParser) parseIfNull() {
	p.parseLogicalOr()
	for p.check(scanner.KQuestionQuestion) {
		loc := p.advance().Location
		p.parseLogicalOr()
		p.b.DoBinary(loc, int16(scanner.KQuestionQuestion))
	}
}

func (p *unitParser) parseLogicalOr() {
	p.parseLogicalAnd()
	for p.check(scanner.KPipePipe) {
		loc := p.advance().Location
		p.parseLogicalAnd()
		p.b.DoBinary(loc, int16(scanner.KPipePipe))
	}
}

func (p *unitParser) parseLogicalAnd() {
	p.parseBitwiseOr()
	for p.check(scanner.KAmpAmp) {
		loc := p.advance().Location
		p.parseBitwiseOr()
		p.b.DoBinary(loc, int16(scanner.KAmpAmp))
	}
}

func (p *unitParser) parseBitwiseOr() {
	p.parseBitwiseXor()
	for p.check(scanner.KPipe) {
		loc := p.advance().Location
		p.parseBitwiseXor()
		p.b.DoBinary(loc, int16(scanner.KPipe))
	}
}

func (p *unitParser) parseBitwiseXor() {
	p.parseBitwiseAnd()
	for p.check(scanner.KCaret) {
		loc := p.advance().Location
		p.parseBitwiseAnd()
		p.b.DoBinary(loc, int16(scanner.KCaret))
	}
}

func (p *unitParser) parseBitwiseAnd() {
	p.parseEquality()
	for p.check(scanner.KAmp) {
		loc := p.advance().Location
		p.parseEquality()
		p.b.DoBinary(loc, int16(scanner.KAmp))
	}
}

func (p *unitParser) parseEquality() {
	p.parseRelational()
	for p.check(scanner.KEqEq) || p.check(scanner.KBangEq) {
		op := p.advance()
		p.parseRelational()
		p.b.DoBinary(op.Location, int16(op.Kind))
	}
}

func (p *unitParser) parseRelational() {
	p.parseShift()
	for {
		loc := p.cur().Location
		switch {
		case p.check(scanner.KIs):
			p.advance()
			negated := p.accept(scanner.KBang)
			classRef := p.parseTypeRef()
			p.b.DoIs(loc, negated, classRef)
		case p.check(scanner.KAs):
			p.advance()
			classRef := p.parseTypeRef()
			p.b.DoAs(loc, classRef)
		case p.check(scanner.KLe) || p.check(scanner.KLAngle):
			op := p.advance().Kind
			p.parseShift()
			p.b.DoBinary(loc, int16(op))
		case p.gtOperatorAt(0) && p.kindAt(1) == scanner.KEq:
			// The scanner emits every `>` alone; `>=` is reassembled
			// here from the adjacent pair (spec §4.4).
			p.advance()
			p.advance()
			p.parseShift()
			p.b.DoBinary(loc, int16(scanner.KGe))
		case p.check(scanner.KGtStart) && p.kindAt(1) != scanner.KGtStart:
			p.advance()
			p.parseShift()
			p.b.DoBinary(loc, int16(scanner.KGtStart))
		default:
			return
		}
	}
}

func (p *unitParser) parseShift() {
	p.parseAdditive()
	for {
		switch {
		case p.check(scanner.KShl):
			loc := p.advance().Location
			p.parseAdditive()
			p.b.DoBinary(loc, int16(scanner.KShl))
		case p.gtOperatorAt(0) && p.gtOperatorAt(1) && p.kindAt(2) != scanner.KEq:
			// Two adjacent operator-position `>` tokens reassemble to
			// `>>`; a trailing `=` instead makes the triple a `>>=`
			// owned by the assignment level.
			loc := p.advance().Location
			p.advance()
			p.parseAdditive()
			p.b.DoBinary(loc, int16(scanner.KShr))
		default:
			return
		}
	}
}

func (p *unitParser) parseAdditive() {
	p.parseMultiplicative()
	for p.check(scanner.KPlus) || p.check(scanner.KMinus) {
		op := p.advance()
		p.parseMultiplicative()
		p.b.DoBinary(op.Location, int16(op.Kind))
	}
}

func (p *unitParser) parseMultiplicative() {
	p.parseUnary()
	for p.check(scanner.KStar) || p.check(scanner.KSlash) || p.check(scanner.KPercent) || p.check(scanner.KTildeSlash) {
		op := p.advance()
		p.parseUnary()
		p.b.DoBinary(op.Location, int16(op.Kind))
	}
}

func (p *unitParser) parseUnary() {
	loc := p.cur().Location
	switch {
	case p.check(scanner.KBang), p.check(scanner.KMinus), p.check(scanner.KTilde):
		op := p.advance().Kind
		p.parseUnary()
		p.b.DoUnary(loc, int16(op))
	case p.check(scanner.KPlusPlus), p.check(scanner.KMinusMinus):
		op := p.advance().Kind
		p.parseUnary()
		p.b.DoUnary(loc, int16(op))
	default:
		p.parsePostfix()
	}
}

func (p *unitParser) parsePostfix() {
	p.parsePrimaryDispatch()
	for {
		loc := p.cur().Location
		switch {
		case p.check(scanner.KDot) || p.check(scanner.KQuestionDot):
			nullAware := p.check(scanner.KQuestionDot)
			p.advance()
			nameTok := p.expect(scanner.KIdentifier, "member name")
			if p.check(scanner.KLParen) {
				argCount, namedLabels := p.parseArgList()
				n := p.b.DoInvoke(loc, argCount, nameTok.Payload, namedLabels)
				if nullAware {
					n.Operator = int16(scanner.KQuestionDot)
				}
			} else {
				n := p.b.DoDot(loc, nameTok.Payload)
				if nullAware {
					n.Operator = int16(scanner.KQuestionDot)
				}
			}
		case p.check(scanner.KLBracket):
			p.advance()
			p.parseAssignment()
			p.expect(scanner.KRBracket, "]")
			p.b.DoIndex(loc)
		case p.check(scanner.KLParen):
			argCount, namedLabels := p.parseArgList()
			p.b.DoInvoke(loc, argCount, 0, namedLabels)
		case p.check(scanner.KPlusPlus) || p.check(scanner.KMinusMinus):
			opKind := p.advance().Kind
			op := ast.OpPostfixIncrement
			if opKind == scanner.KMinusMinus {
				op = ast.OpPostfixDecrement
			}
			p.b.DoUnary(loc, op)
		default:
			return
		}
	}
}

// parseArgList parses a parenthesized call argument list, returning
// the total argument count and the name ids of any trailing named
// arguments (spec §4.5 "named arguments").
func (p *unitParser) parseArgList() (int, []int32) {
	p.expect(scanner.KLParen, "(")
	count := 0
	var namedLabels []int32
	for !p.check(scanner.KRParen) {
		if p.check(scanner.KIdentifier) && p.kindAt(1) == scanner.KColon {
			nameTok := p.advance()
			p.advance() // ':'
			namedLabels = append(namedLabels, nameTok.Payload)
			p.parseAssignment()
		} else {
			p.parseAssignment()
		}
		count++
		if !p.accept(scanner.KComma) {
			break
		}
	}
	p.expect(scanner.KRParen, ")")
	return count, namedLabels
}

// looksLikeFunctionExpr decides, in O(1) via the opening paren's
// bracket-match payload (spec §4.4), whether a `(` at an
// expression-start position begins an anonymous function's parameter
// list rather than a parenthesized expression.
func (p *unitParser) looksLikeFunctionExpr() bool {
	open := p.cur()
	if open.Kind != scanner.KLParen || open.Payload <= 0 {
		return false
	}
	after := p.pos + int(open.Payload) + 1
	if after >= len(p.tokens) {
		return false
	}
	k := p.tokens[after].Kind
	return k == scanner.KArrow || k == scanner.KLBrace
}

func (p *unitParser) parsePrimaryDispatch() {
	loc := p.cur().Location
	if p.check(scanner.KLAngle) {
		// Leading type-argument list on a collection literal, e.g.
		// `<int>[1, 2]`; skip it and dispatch on what follows.
		p.skipAngleList()
	}

	switch {
	case p.check(scanner.KInteger):
		tok := p.advance()
		n := p.b.Push(ast.KindLiteralInteger, loc)
		n.IntValue = p.integers[tok.Payload]
	case p.check(scanner.KDouble):
		tok := p.advance()
		n := p.b.Push(ast.KindLiteralDouble, loc)
		n.DoubleValue = p.doubles[tok.Payload]
	case p.check(scanner.KString):
		tok := p.advance()
		n := p.b.Push(ast.KindLiteralString, loc)
		n.StringValue = p.strings[tok.Payload]
	case p.check(scanner.KStringInterpolation):
		p.parseStringInterpolationExpr()
	case p.check(scanner.KTrue):
		p.advance()
		n := p.b.Push(ast.KindLiteralBoolean, loc)
		n.BoolValue = true
	case p.check(scanner.KFalse):
		p.advance()
		n := p.b.Push(ast.KindLiteralBoolean, loc)
		n.BoolValue = false
	case p.check(scanner.KNull):
		p.advance()
		p.b.Push(ast.KindNull, loc)
	case p.check(scanner.KThis):
		p.advance()
		p.b.Push(ast.KindThis, loc)
	case p.check(scanner.KSuper):
		p.advance()
		p.b.Push(ast.KindSuper, loc)
	case p.check(scanner.KThrow):
		p.advance()
		p.parseAssignment()
		p.b.DoThrow(loc)
	case p.check(scanner.KNew):
		p.advance()
		p.finishNew(loc, false)
	case p.check(scanner.KConst):
		p.advance()
		switch {
		case p.check(scanner.KLBracket):
			p.finishLiteralList(loc, true)
		case p.check(scanner.KLBrace):
			p.finishLiteralMap(loc, true)
		default:
			p.finishNew(loc, true)
		}
	case p.check(scanner.KLBracket):
		p.finishLiteralList(loc, false)
	case p.check(scanner.KLBrace):
		p.finishLiteralMap(loc, false)
	case p.check(scanner.KLParen):
		if p.looksLikeFunctionExpr() {
			params := p.parseParams()
			hasBody := p.parseMethodBodyPresence()
			p.b.DoFunctionExpression(loc, params, hasBody)
		} else {
			p.advance()
			p.parseAssignment()
			p.expect(scanner.KRParen, ")")
			p.b.DoParenthesized(loc)
		}
	case p.check(scanner.KIdentifier):
		tok := p.advance()
		n := p.b.Push(ast.KindIdentifier, loc)
		n.NameID = tok.Payload
	default:
		p.fail(loc, "expected expression, found token kind %d", p.cur().Kind)
	}
}

func (p *unitParser) parseStringInterpolationExpr() {
	loc := p.cur().Location
	count := 0
	for {
		tok := p.advance() // KStringInterpolation or KStringInterpolationEnd
		n := p.b.Push(ast.KindLiteralString, tok.Location)
		n.StringValue = p.strings[tok.Payload]
		count++
		if tok.Kind == scanner.KStringInterpolationEnd {
			break
		}
		p.parseAssignment()
		count++
		if !p.check(scanner.KStringInterpolation) && !p.check(scanner.KStringInterpolationEnd) {
			p.fail(p.cur().Location, "unterminated string interpolation")
		}
	}
	p.b.DoStringInterpolation(loc, count)
}

func (p *unitParser) finishNew(loc source.Location, isConst bool) {
	nameTok := p.expect(scanner.KIdentifier, "class name")
	classRef := p.allocNode(ast.KindIdentifier, nameTok.Location)
	classRef.NameID = nameTok.Payload
	p.skipOptionalGenericArgs()
	var subName int32
	if p.accept(scanner.KDot) {
		subName = p.expect(scanner.KIdentifier, "named constructor name").Payload
	}
	p.b.PushNode(classRef) // DoNew pops it back after the arg list, per its own stack contract
	argCount, namedLabels := p.parseArgList()
	p.b.DoNew(loc, argCount, subName, namedLabels, isConst)
}

func (p *unitParser) finishLiteralList(loc source.Location, isConst bool) {
	p.expect(scanner.KLBracket, "[")
	count := 0
	for !p.check(scanner.KRBracket) {
		p.parseAssignment()
		count++
		if !p.accept(scanner.KComma) {
			break
		}
	}
	p.expect(scanner.KRBracket, "]")
	p.b.DoLiteralList(loc, count, isConst)
}

func (p *unitParser) finishLiteralMap(loc source.Location, isConst bool) {
	p.expect(scanner.KLBrace, "{")
	entries := 0
	for !p.check(scanner.KRBrace) {
		p.parseAssignment() // key
		p.expect(scanner.KColon, ":")
		p.parseAssignment() // value
		entries++
		if !p.accept(scanner.KComma) {
			break
		}
	}
	p.expect(scanner.KRBrace, "}")
	p.b.DoLiteralMap(loc, entries, isConst)
}
