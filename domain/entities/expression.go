package entities

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Expression is either one of the base moods or the name of a custom mood
type Expression string

const (
	ExpressionNeutral    Expression = "neutral"
	ExpressionHappy      Expression = "happy"
	ExpressionSurprised  Expression = "surprised"
	ExpressionAngry      Expression = "angry"
	ExpressionCurious    Expression = "curious"
	ExpressionSleepy     Expression = "sleepy"
	ExpressionWink       Expression = "wink"
	ExpressionSkeptical  Expression = "skeptical"
	ExpressionSad        Expression = "sad"
	ExpressionExcited    Expression = "excited"
	ExpressionThinking   Expression = "thinking"
	ExpressionAnnoyed    Expression = "annoyed"
	ExpressionThoughtful Expression = "thoughtful"
	ExpressionYawn       Expression = "yawn"
	ExpressionDistracted Expression = "distracted"
)

// BaseMoods is the closed set of moods the face can draw natively
var BaseMoods = []Expression{
	ExpressionNeutral,
	ExpressionHappy,
	ExpressionSurprised,
	ExpressionAngry,
	ExpressionCurious,
	ExpressionSleepy,
	ExpressionWink,
	ExpressionSkeptical,
	ExpressionSad,
	ExpressionExcited,
	ExpressionThinking,
	ExpressionAnnoyed,
	ExpressionThoughtful,
	ExpressionYawn,
	ExpressionDistracted,
}

var baseMoodSet = func() map[Expression]struct{} {
	m := make(map[Expression]struct{}, len(BaseMoods))
	for _, e := range BaseMoods {
		m[e] = struct{}{}
	}
	return m
}()

// IsBaseMood reports whether e is part of the fixed base set
func IsBaseMood(e Expression) bool {
	_, ok := baseMoodSet[e]
	return ok
}

// CustomExpression composes a user-defined mood from the eyes of one base
// mood and the mouth of another.
type CustomExpression struct {
	EyeBase   Expression `json:"eye_base" bson:"eye_base"`
	MouthBase Expression `json:"mouth_base" bson:"mouth_base"`
}

// CustomExpressions is the user-authored registry, keyed by mood name
type CustomExpressions map[string]CustomExpression

// ValidateCustomExpression checks a registry entry before it is stored
func ValidateCustomExpression(name string, ce CustomExpression) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("mood name is required")
	}
	if IsBaseMood(Expression(name)) {
		return fmt.Errorf("mood name %q is reserved for a base mood", name)
	}
	if !IsBaseMood(ce.EyeBase) {
		return fmt.Errorf("eye base %q is not a base mood", ce.EyeBase)
	}
	if !IsBaseMood(ce.MouthBase) {
		return fmt.Errorf("mouth base %q is not a base mood", ce.MouthBase)
	}
	return nil
}

// Validate checks every entry of the registry
func (r CustomExpressions) Validate() error {
	for name, ce := range r {
		if err := ValidateCustomExpression(name, ce); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether name is a base mood or a registered custom mood
func (r CustomExpressions) Has(name string) bool {
	if IsBaseMood(Expression(name)) {
		return true
	}
	_, ok := r[name]
	return ok
}

// Names returns the registered custom mood names in a stable order
func (r CustomExpressions) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the registry
func (r CustomExpressions) Clone() CustomExpressions {
	out := make(CustomExpressions, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ResolveExpression maps any expression name to the (eye, mouth) pair the face
// draws. Base moods map to themselves, custom moods to their registered bases,
// and anything else falls back to neutral.
func ResolveExpression(name string, registry CustomExpressions) (eye, mouth Expression) {
	if e := Expression(name); IsBaseMood(e) {
		return e, e
	}
	if ce, ok := registry[name]; ok && IsBaseMood(ce.EyeBase) && IsBaseMood(ce.MouthBase) {
		return ce.EyeBase, ce.MouthBase
	}
	return ExpressionNeutral, ExpressionNeutral
}
