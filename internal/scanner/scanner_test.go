package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/scanner"
	"github.com/corelang/corec/internal/source"
)

func scan(t *testing.T, text string) scanner.Result {
	t.Helper()
	table := source.NewTable()
	base := table.LoadBytes("<test>", []byte(text))
	idents := scanner.NewIdentifierTable()
	res, err := scanner.New(table, base, idents).Scan()
	require.NoError(t, err)
	return res
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	res := scan(t, "class Foo extends Bar")
	kinds := []scanner.Kind{}
	for _, tk := range res.Tokens {
		kinds = append(kinds, tk.Kind)
	}
	require.Equal(t, []scanner.Kind{
		scanner.KClass, scanner.KIdentifier, scanner.KExtends, scanner.KIdentifier,
	}, kinds)
}

func TestScanIntegersAndDoubles(t *testing.T) {
	res := scan(t, "1 2.5 0x1F 3e2")
	require.Len(t, res.Tokens, 4)
	require.Equal(t, scanner.KInteger, res.Tokens[0].Kind)
	require.Equal(t, int64(1), res.Integers[res.Tokens[0].Payload])
	require.Equal(t, scanner.KDouble, res.Tokens[1].Kind)
	require.Equal(t, 2.5, res.Doubles[res.Tokens[1].Payload])
	require.Equal(t, scanner.KInteger, res.Tokens[2].Kind)
	require.Equal(t, int64(31), res.Integers[res.Tokens[2].Payload])
	require.Equal(t, scanner.KDouble, res.Tokens[3].Kind)
	require.Equal(t, 300.0, res.Doubles[res.Tokens[3].Payload])
}

func TestBracketMatchingDistances(t *testing.T) {
	res := scan(t, "foo(bar[1])")
	// foo ( bar [ 1 ] )
	open := -1
	for i, tk := range res.Tokens {
		if tk.Kind == scanner.KLParen {
			open = i
		}
	}
	require.NotEqual(t, -1, open)
	closeIdx := open + int(res.Tokens[open].Payload)
	require.Equal(t, scanner.KRParen, res.Tokens[closeIdx].Kind)
}

func TestUnmatchedCloserHasNegativePayload(t *testing.T) {
	res := scan(t, ")")
	require.Equal(t, scanner.KRParen, res.Tokens[0].Kind)
	require.EqualValues(t, -1, res.Tokens[0].Payload)
}

func TestGtStartAlwaysSingleChar(t *testing.T) {
	res := scan(t, "a >> b")
	var gts int
	for _, tk := range res.Tokens {
		if tk.Kind == scanner.KGtStart {
			gts++
		}
	}
	require.Equal(t, 2, gts, "'>>' must scan as two kGtStart tokens")
}

func TestGenericCloseMatchesAngle(t *testing.T) {
	res := scan(t, "List<int>")
	var openIdx int
	for i, tk := range res.Tokens {
		if tk.Kind == scanner.KLAngle {
			openIdx = i
		}
	}
	closeIdx := openIdx + int(res.Tokens[openIdx].Payload)
	require.Equal(t, scanner.KGtStart, res.Tokens[closeIdx].Kind)
}

func TestSimpleStringLiteral(t *testing.T) {
	res := scan(t, `"hello world"`)
	require.Len(t, res.Tokens, 1)
	require.Equal(t, scanner.KString, res.Tokens[0].Kind)
	require.Equal(t, "hello world", res.Strings[res.Tokens[0].Payload])
}

func TestStringInterpolationShorthand(t *testing.T) {
	res := scan(t, `"hi $name!"`)
	require.Len(t, res.Tokens, 3)
	require.Equal(t, scanner.KStringInterpolation, res.Tokens[0].Kind)
	require.Equal(t, "hi ", res.Strings[res.Tokens[0].Payload])
	require.Equal(t, scanner.KIdentifier, res.Tokens[1].Kind)
	require.Equal(t, scanner.KStringInterpolationEnd, res.Tokens[2].Kind)
	require.Equal(t, "!", res.Strings[res.Tokens[2].Payload])
}

func TestStringInterpolationBraceForm(t *testing.T) {
	res := scan(t, `"sum is ${1 + 2} done"`)
	kinds := []scanner.Kind{}
	for _, tk := range res.Tokens {
		kinds = append(kinds, tk.Kind)
	}
	require.Equal(t, []scanner.Kind{
		scanner.KStringInterpolation,
		scanner.KInteger, scanner.KPlus, scanner.KInteger,
		scanner.KStringInterpolationEnd,
	}, kinds)
}

func TestRawStringIgnoresEscapesAndInterpolation(t *testing.T) {
	res := scan(t, `r"no \n escape or $x here"`)
	require.Len(t, res.Tokens, 1)
	require.Equal(t, scanner.KString, res.Tokens[0].Kind)
	require.Contains(t, res.Strings[res.Tokens[0].Payload], `\n`)
	require.Contains(t, res.Strings[res.Tokens[0].Payload], "$x")
}

func TestUnterminatedStringIsScanError(t *testing.T) {
	table := source.NewTable()
	base := table.LoadBytes("<test>", []byte(`"oops`))
	idents := scanner.NewIdentifierTable()
	_, err := scanner.New(table, base, idents).Scan()
	require.Error(t, err)
	var scanErr *scanner.ScanError
	require.ErrorAs(t, err, &scanErr)
}

func TestIllegalCharacterIsScanError(t *testing.T) {
	table := source.NewTable()
	base := table.LoadBytes("<test>", []byte("a ` b"))
	idents := scanner.NewIdentifierTable()
	_, err := scanner.New(table, base, idents).Scan()
	require.Error(t, err)
}

func TestNestedBlockComments(t *testing.T) {
	res := scan(t, "/* outer /* inner */ still outer */ x")
	require.Len(t, res.Tokens, 1)
	require.Equal(t, scanner.KIdentifier, res.Tokens[0].Kind)
}
