// Package scanner turns source bytes into a length-encoded token
// sequence (spec §4.4): every opening bracket token carries the
// distance to its match so the parser can skip a balanced region in
// O(1), and every
// identifier/number/string token carries a payload index into one of
// the scanner's interning tables.
package scanner

import "github.com/corelang/corec/internal/source"

// Kind identifies the lexical class of a Token.
type Kind int16

const (
	KEof Kind = iota

	KIdentifier
	KInteger
	KDouble
	KString
	KStringInterpolation
	KStringInterpolationEnd

	// Brackets. Payload holds the forward distance to the matching
	// token for an opener, -1 for an unmatched closer.
	KLParen
	KRParen
	KLBracket
	KRBracket
	KLBrace
	KRBrace
	KLAngle
	KGtStart // '>' emitted specially so the parser can disambiguate

	// Punctuation
	KComma
	KSemicolon
	KColon
	KDot
	KDotDotDot
	KQuestion
	KArrow // =>
	KCascade
	KAt

	// Operators
	KPlus
	KMinus
	KStar
	KSlash
	KPercent
	KTildeSlash // ~/
	KAmpAmp
	KPipePipe
	KBang
	KBangEq
	KEqEq
	KLe
	KGe
	KAmp
	KPipe
	KCaret
	KTilde
	KShl
	KEq
	KPlusEq
	KMinusEq
	KStarEq
	KSlashEq
	KPercentEq
	KAmpEq
	KPipeEq
	KCaretEq
	KShlEq
	KAmpAmpEq
	KPipePipeEq
	KPlusPlus
	KMinusMinus
	KQuestionQuestion
	KQuestionQuestionEq
	KQuestionDot

	// Synthesized by the parser from adjacent operator-position
	// KGtStart tokens (spec §4.4 "Greater-than is emitted as kGtStart
	// so the parser can disambiguate nested type arguments from
	// shift/shift-assign operators"); never emitted by the scanner.
	KShr
	KShrEq

	// Keywords (identifiers pre-seeded into the keyword trie)
	KClass
	KVar
	KFinal
	KConst
	KStatic
	KFactory
	KGet
	KSet
	KOperator
	KExtends
	KImplements
	KWith
	KTypedef
	KIf
	KElse
	KFor
	KIn
	KWhile
	KDo
	KBreak
	KContinue
	KReturn
	KAssert
	KCase
	KSwitch
	KCatch
	KTry
	KFinally
	KRethrow
	KIs
	KAs
	KNew
	KThis
	KSuper
	KNull
	KTrue
	KFalse
	KImport
	KExport
	KPart
	KOf
	KShow
	KHide
	KThrow
	KVoid
	KDynamic
	KDefault
	KOn
)

var keywordKinds = map[string]Kind{
	"class": KClass, "var": KVar, "final": KFinal, "const": KConst,
	"static": KStatic, "factory": KFactory, "get": KGet, "set": KSet,
	"operator": KOperator, "extends": KExtends, "implements": KImplements,
	"with": KWith, "typedef": KTypedef, "if": KIf, "else": KElse,
	"for": KFor, "in": KIn, "while": KWhile, "do": KDo, "break": KBreak,
	"continue": KContinue, "return": KReturn, "assert": KAssert,
	"case": KCase, "switch": KSwitch, "catch": KCatch, "try": KTry,
	"finally": KFinally, "rethrow": KRethrow, "is": KIs, "as": KAs,
	"new": KNew, "this": KThis, "super": KSuper, "null": KNull,
	"true": KTrue, "false": KFalse, "import": KImport, "export": KExport,
	"part": KPart, "of": KOf, "show": KShow, "hide": KHide,
	"throw": KThrow, "void": KVoid, "dynamic": KDynamic,
	"default": KDefault, "on": KOn,
}

// Token is a single scanner output unit (spec §3 "Token").
type Token struct {
	Kind     Kind
	Payload  int32
	Location source.Location
}
