package cleanup

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// literalSyntax: "from => to", matched case-insensitively.
type literalSyntax struct{}

func (literalSyntax) Match(line string) bool {
	return strings.Contains(line, "=>")
}

func (literalSyntax) Compile(line string) (Rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("literal rule needs a source")
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("literal source: %w", err)
	}
	return replaceRule{re: re, with: regexpLiteral(strings.TrimSpace(to)), all: true}, nil
}

// sedSyntax: "s<d>pattern<d>replacement<d>flags" for any punctuation
// delimiter d. Patterns are case-insensitive; flags: g all matches, m
// multi-line, s dot matches newline. \1..\9 in the replacement are groups.
type sedSyntax struct{}

func (sedSyntax) Match(line string) bool {
	return len(line) > 1 && line[0] == 's' && isDelimiter(rune(line[1]))
}

func (sedSyntax) Compile(line string) (Rule, error) {
	fields, err := splitSed(line[2:], line[1])
	if err != nil {
		return nil, err
	}
	pattern, replacement, flags := fields[0], fields[1], strings.TrimSpace(fields[2])

	inline := "i"
	all := false
	for _, flag := range flags {
		switch flag {
		case 'g':
			all = true
		case 'i':
		case 'm', 's':
			if !strings.ContainsRune(inline, flag) {
				inline += string(flag)
			}
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + inline + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return replaceRule{re: re, with: sedReplacement(replacement), all: all}, nil
}

// splitSed returns pattern, replacement and flags. A backslash escapes the
// delimiter; other escapes are kept for the regex engine.
func splitSed(body string, delim byte) ([3]string, error) {
	var fields [3]string
	var current strings.Builder
	field := 0

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case field == 2:
			current.WriteByte(c)
		case c == '\\' && i+1 < len(body) && body[i+1] == delim:
			current.WriteByte(delim)
			i++
		case c == '\\' && i+1 < len(body):
			current.WriteByte(c)
			current.WriteByte(body[i+1])
			i++
		case c == delim:
			fields[field] = current.String()
			current.Reset()
			field++
		default:
			current.WriteByte(c)
		}
	}

	if field < 2 {
		return fields, errors.New("unterminated sed expression")
	}
	fields[2] = current.String()
	return fields, nil
}

var sedGroupRef = regexp.MustCompile(`\\([0-9])`)

// sedReplacement turns sed group references into Go template form and
// escapes any literal $.
func sedReplacement(repl string) string {
	repl = strings.ReplaceAll(repl, "$", "$$")
	return sedGroupRef.ReplaceAllString(repl, "$${$1}")
}

func regexpLiteral(text string) string {
	return strings.ReplaceAll(text, "$", "$$")
}

type replaceRule struct {
	re   *regexp.Regexp
	with string
	all  bool
}

func (r replaceRule) Apply(input string) (string, bool) {
	if r.all {
		output := r.re.ReplaceAllString(input, r.with)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := r.re.ExpandString(nil, r.with, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

func isDelimiter(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r))
}
