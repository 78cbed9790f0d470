package converter

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Filter is an operator supplied selector for elements to drop from every
// article. Selectors using :contains() are kept as text and compiled on
// each use, all others are compiled once.
type Filter struct {
	selector string
	compiled cascadia.Selector
}

// CompileFilter validates selector and prepares it for repeated use.
func CompileFilter(selector string) (Filter, error) {
	compiled, err := cascadia.Compile(selector)
	if err != nil {
		return Filter{}, fmt.Errorf("invalid filter selector %q: %w", selector, err)
	}
	if strings.Contains(selector, ":contains(") {
		return Filter{selector: selector}, nil
	}
	return Filter{selector: selector, compiled: compiled}, nil
}

// String returns the selector text.
func (f Filter) String() string {
	return f.selector
}

// Literal reports whether the filter is recompiled on every use.
func (f Filter) Literal() bool {
	return f.compiled == nil
}

// Matcher returns a matcher for the filter's selector.
func (f Filter) Matcher() (goquery.Matcher, error) {
	if f.compiled != nil {
		return f.compiled, nil
	}
	compiled, err := cascadia.Compile(f.selector)
	if err != nil {
		return nil, fmt.Errorf("invalid filter selector %q: %w", f.selector, err)
	}
	return compiled, nil
}

// compileSelectorList compiles a comma separated list of selectors, one
// matcher per item.
func compileSelectorList(list string) ([]goquery.Matcher, error) {
	if list == "" {
		return nil, nil
	}
	var matchers []goquery.Matcher
	for _, s := range strings.Split(list, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		compiled, err := cascadia.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", s, err)
		}
		matchers = append(matchers, compiled)
	}
	return matchers, nil
}
