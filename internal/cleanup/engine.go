// Package cleanup normalises a spoken answer before it becomes an editable
// draft: user substitution rules first, then whitespace collapse.
package cleanup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const defaultPassLimit = 30

// Rule rewrites text. changed reports whether the output differs.
type Rule interface {
	Apply(input string) (output string, changed bool)
}

// Syntax recognises and compiles one form of rule line.
type Syntax interface {
	Match(line string) bool
	Compile(line string) (Rule, error)
}

// DefaultSyntaxes are tried in order: sed-style before literal so that
// "s/a => b/c/" is read as a regex.
func DefaultSyntaxes() []Syntax {
	return []Syntax{sedSyntax{}, literalSyntax{}}
}

// Engine runs every rule repeatedly until the text stops changing or the pass
// limit is hit.
type Engine struct {
	rules     []Rule
	passLimit int
}

// New builds an engine from compiled rules.
func New(rules []Rule, passLimit int) *Engine {
	if passLimit <= 0 {
		passLimit = defaultPassLimit
	}
	return &Engine{rules: rules, passLimit: passLimit}
}

// Load reads a rules file. A blank path or a missing file yields an engine
// that only collapses whitespace.
func Load(path string, passLimit int, syntaxes ...Syntax) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return New(nil, passLimit), nil
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(nil, passLimit), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open rules file %q: %w", path, err)
	}
	defer f.Close()

	rules, err := Parse(f, syntaxes...)
	if err != nil {
		return nil, fmt.Errorf("parse rules file %q: %w", path, err)
	}
	return New(rules, passLimit), nil
}

// Parse compiles one rule per non-blank line; lines starting with # are
// comments.
func Parse(r io.Reader, syntaxes ...Syntax) ([]Rule, error) {
	if len(syntaxes) == 0 {
		syntaxes = DefaultSyntaxes()
	}

	var rules []Rule
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := compileLine(line, syntaxes)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func compileLine(line string, syntaxes []Syntax) (Rule, error) {
	for _, syntax := range syntaxes {
		if syntax.Match(line) {
			return syntax.Compile(line)
		}
	}
	return nil, errors.New("unsupported rule format")
}

// Len is the number of loaded rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply implements ports.TranscriptCleaner.
func (e *Engine) Apply(text string) (string, error) {
	result := text
	for pass := 0; pass < e.passLimit && len(e.rules) > 0; pass++ {
		changed := false
		for _, rule := range e.rules {
			if next, ok := rule.Apply(result); ok {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return collapseSpace(result), nil
}

func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
