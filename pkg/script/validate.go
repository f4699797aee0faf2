package script

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template/parse"
)

var (
	ErrForbidden      = errors.New("script: forbidden construct")
	ErrExcessiveDepth = errors.New("script: nesting too deep")
)

// Validator rejects scripts that nest too deeply, include other templates or
// contain shell-like expansions.
type Validator struct {
	MaxDepth  int
	Forbidden []*regexp.Regexp
}

func NewValidator() *Validator {
	return &Validator{
		MaxDepth: 10,
		Forbidden: []*regexp.Regexp{
			regexp.MustCompile(`\$\{[^{][^}]*}`), // ${VAR}, not ${{ ... }}
			regexp.MustCompile(`\$\([^)]*\)`),    // $(cmd)
			regexp.MustCompile(`\.\./`),
		},
	}
}

// Check parses script with funcs declared and walks the action tree.
func (v *Validator) Check(script string, funcs map[string]any) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}
	for _, p := range v.Forbidden {
		if p.MatchString(script) {
			return fmt.Errorf("%w: matches %s", ErrForbidden, p)
		}
	}
	trees, err := parse.Parse("post-call", script, "", "", funcs, builtinNames)
	if err != nil {
		return fmt.Errorf("script: parse: %w", err)
	}
	if len(trees) > 1 {
		return fmt.Errorf("%w: template definitions", ErrForbidden)
	}
	t := trees["post-call"]
	if t == nil || t.Root == nil {
		return nil
	}
	return v.walk(t.Root, 0)
}

func (v *Validator) walk(n parse.Node, depth int) error {
	if depth > v.MaxDepth {
		return ErrExcessiveDepth
	}
	switch n := n.(type) {
	case *parse.ListNode:
		if n == nil {
			return nil
		}
		for _, c := range n.Nodes {
			if err := v.walk(c, depth); err != nil {
				return err
			}
		}
	case *parse.IfNode:
		return v.branch(&n.BranchNode, depth)
	case *parse.RangeNode:
		return v.branch(&n.BranchNode, depth)
	case *parse.WithNode:
		return v.branch(&n.BranchNode, depth)
	case *parse.TemplateNode:
		return fmt.Errorf("%w: template %q", ErrForbidden, n.Name)
	}
	return nil
}

func (v *Validator) branch(b *parse.BranchNode, depth int) error {
	if err := v.walk(b.List, depth+1); err != nil {
		return err
	}
	if b.ElseList != nil {
		return v.walk(b.ElseList, depth+1)
	}
	return nil
}

// builtinNames are the text/template functions plus the script built-ins.
var builtinNames = map[string]any{
	"and": true, "or": true, "not": true, "len": true, "index": true, "slice": true,
	"print": true, "printf": true, "println": true, "html": true, "js": true, "urlquery": true,
	"call": true, "eq": true, "ne": true, "lt": true, "le": true, "gt": true, "ge": true,
	"fail": true, "failf": true, "assert": true, "json": true, "get": true,
	"header": true, "status": true, "set": true,
}

// Check validates script with the default Validator and built-in functions.
func Check(script string) error {
	return NewValidator().Check(script, nil)
}
