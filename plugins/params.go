package plugins

import (
	"fmt"
	"strings"
)

// ParseParameters splits the parameter string protoc passes to a plugin into
// tokens. Protoc joins the values of repeated --<plugin>_opt flags and the
// prefix of --<plugin>_out with commas, so commas separate tokens.
//
// A single or double quote at the start of a token opens a quoted section in
// which commas do not split. The matching quote closes both the section and
// the token, and the quote characters are kept. A quote anywhere else in a
// token is an ordinary character. Empty tokens are dropped, so the empty
// string yields no tokens.
func ParseParameters(param string) ([]string, error) {
	var (
		args  []string
		tok   strings.Builder
		quote rune
	)
	emit := func() {
		if tok.Len() > 0 {
			args = append(args, tok.String())
			tok.Reset()
		}
	}
	for _, r := range param {
		switch {
		case quote != 0:
			tok.WriteRune(r)
			if r == quote {
				quote = 0
				emit()
			}
		case r == ',':
			emit()
		case tok.Len() == 0 && (r == '\'' || r == '"'):
			tok.WriteRune(r)
			quote = r
		default:
			tok.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("no closing quotation for %c in %q", quote, tok.String())
	}
	emit()
	return args, nil
}
