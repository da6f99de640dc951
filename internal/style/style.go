// Package style validates model-authored CSS before it reaches the face
// client. Only rules that target the face's own parts survive, and only
// visual properties are kept.
package style

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// MaxLength bounds the size of a single override
const MaxLength = 8 * 1024

var (
	ErrEmpty      = errors.New("css override is empty")
	ErrTooLarge   = errors.New("css override is too large")
	ErrOutOfScope = errors.New("selector targets an element outside the face")
	ErrUnsafe     = errors.New("css value is not allowed")
)

// Scopes lists the class names an override may target
var Scopes = []string{
	".face", ".eyes", ".eye", ".eye-left", ".eye-right", ".pupil", ".brow",
	".mouth", ".cheek", ".sticker", ".thought",
}

var allowedProperties = map[string]struct{}{
	"animation": {}, "animation-delay": {}, "animation-duration": {}, "animation-iteration-count": {},
	"animation-name": {}, "animation-timing-function": {},
	"background": {}, "background-color": {}, "background-image": {},
	"border": {}, "border-color": {}, "border-radius": {}, "border-width": {}, "border-style": {},
	"box-shadow": {}, "color": {}, "filter": {}, "height": {}, "margin": {}, "opacity": {},
	"outline": {}, "padding": {}, "rotate": {}, "scale": {}, "transform": {}, "transform-origin": {},
	"transition": {}, "width": {},
}

var (
	selectorPattern = regexp.MustCompile(`^[a-z0-9\-_.:#>+~ ()\[\]="]+$`)
	keyframesName   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9\-_]*$`)
	unsafeValue     = []string{"url(", "expression(", "javascript:", "@import", "<", "\\"}
)

// Override is a validated set of style rules. It replaces any previous
// override as a whole.
type Override struct {
	CSS     string   `json:"css"`
	Rules   int      `json:"rules"`
	Dropped []string `json:"dropped,omitempty"`
}

// Parse validates input and returns the override to apply. Declarations with
// properties outside the whitelist are dropped and reported; a selector
// outside the face or an unsafe value rejects the whole override.
func Parse(input string) (*Override, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmpty
	}
	if len(input) > MaxLength {
		return nil, ErrTooLarge
	}

	sheet, err := parser.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("invalid css: %w", err)
	}

	dropped := make(map[string]struct{})
	out := &css.Stylesheet{}
	for _, rule := range sheet.Rules {
		kept, err := filterRule(rule, dropped)
		if err != nil {
			return nil, err
		}
		if kept != nil {
			out.Rules = append(out.Rules, kept)
		}
	}

	if len(out.Rules) == 0 {
		return nil, fmt.Errorf("%w: no allowed declarations", ErrEmpty)
	}

	o := &Override{
		CSS:   out.String(),
		Rules: len(out.Rules),
	}
	for p := range dropped {
		o.Dropped = append(o.Dropped, p)
	}
	sort.Strings(o.Dropped)
	return o, nil
}

func filterRule(rule *css.Rule, dropped map[string]struct{}) (*css.Rule, error) {
	if rule.Kind == css.AtRule {
		return filterAtRule(rule, dropped)
	}

	for _, sel := range rule.Selectors {
		if !inScope(sel) {
			return nil, fmt.Errorf("%w: %q", ErrOutOfScope, sel)
		}
	}

	decls, err := filterDeclarations(rule.Declarations, dropped)
	if err != nil {
		return nil, err
	}
	if len(decls) == 0 {
		return nil, nil
	}

	kept := css.NewRule(css.QualifiedRule)
	kept.Prelude = rule.Prelude
	kept.Selectors = rule.Selectors
	kept.Declarations = decls
	return kept, nil
}

func filterAtRule(rule *css.Rule, dropped map[string]struct{}) (*css.Rule, error) {
	name := strings.ToLower(rule.Name)
	if name != "@keyframes" && name != "@-webkit-keyframes" {
		return nil, fmt.Errorf("%w: at-rule %s", ErrUnsafe, rule.Name)
	}
	if !keyframesName.MatchString(strings.TrimSpace(rule.Prelude)) {
		return nil, fmt.Errorf("%w: keyframes name %q", ErrUnsafe, rule.Prelude)
	}

	kept := css.NewRule(css.AtRule)
	kept.Name = rule.Name
	kept.Prelude = strings.TrimSpace(rule.Prelude)
	for _, frame := range rule.Rules {
		decls, err := filterDeclarations(frame.Declarations, dropped)
		if err != nil {
			return nil, err
		}
		if len(decls) == 0 {
			continue
		}
		f := css.NewRule(css.QualifiedRule)
		f.Prelude = frame.Prelude
		f.Selectors = frame.Selectors
		f.Declarations = decls
		f.EmbedLevel = 1
		kept.Rules = append(kept.Rules, f)
	}
	if len(kept.Rules) == 0 {
		return nil, nil
	}
	return kept, nil
}

func filterDeclarations(decls []*css.Declaration, dropped map[string]struct{}) ([]*css.Declaration, error) {
	var out []*css.Declaration
	for _, d := range decls {
		prop := strings.ToLower(strings.TrimSpace(d.Property))
		if _, ok := allowedProperties[prop]; !ok {
			dropped[prop] = struct{}{}
			continue
		}
		value := strings.ToLower(d.Value)
		for _, bad := range unsafeValue {
			if strings.Contains(value, bad) {
				return nil, fmt.Errorf("%w: %s: %s", ErrUnsafe, prop, d.Value)
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// inScope reports whether the first compound of a selector is one of the
// face scopes.
func inScope(selector string) bool {
	selector = strings.TrimSpace(selector)
	if selector == "" || !selectorPattern.MatchString(selector) {
		return false
	}
	parts := strings.FieldsFunc(selector, func(r rune) bool {
		return r == ' ' || r == '>' || r == '+' || r == '~'
	})
	if len(parts) == 0 {
		return false
	}
	head := parts[0]
	for _, scope := range Scopes {
		if head == scope {
			return true
		}
		if strings.HasPrefix(head, scope) {
			// allow pseudo-classes and compound classes, e.g. .eye:hover or .eye.left
			next := head[len(scope)]
			if next == ':' || next == '.' || next == '[' {
				return true
			}
		}
	}
	return false
}
