package ratelimit

import (
	"strings"
	"time"
)

// Rule allows Limit requests per caller in any trailing Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// DefaultRule applies to endpoints no configured pattern matches.
var DefaultRule = Rule{Limit: 100, Window: 60 * time.Second}

// Rules resolves an endpoint to its Rule by exact match, then by the longest
// matching prefix, then falls back to the default.
type Rules struct {
	patterns map[string]Rule
	fallback Rule
}

func NewRules(fallback Rule) *Rules {
	return &Rules{patterns: make(map[string]Rule), fallback: fallback}
}

func (r *Rules) Set(pattern string, rule Rule) *Rules {
	r.patterns[pattern] = rule
	return r
}

func (r *Rules) Lookup(endpoint string) Rule {
	if rule, ok := r.patterns[endpoint]; ok {
		return rule
	}

	best, found := "", false
	for pattern := range r.patterns {
		if strings.HasPrefix(endpoint, pattern) && len(pattern) > len(best) {
			best, found = pattern, true
		}
	}
	if found {
		return r.patterns[best]
	}
	return r.fallback
}

// DefaultRules is the production table for routes mounted under basePath.
func DefaultRules(basePath string) *Rules {
	return NewRules(DefaultRule).
		Set(basePath+"/auth/login", Rule{Limit: 10, Window: 5 * time.Minute}).
		Set(basePath+"/auth/otp-send", Rule{Limit: 5, Window: 10 * time.Minute}).
		Set(basePath+"/auth/refresh", Rule{Limit: 30, Window: 5 * time.Minute}).
		Set(basePath+"/auth/", Rule{Limit: 60, Window: time.Minute}).
		Set(basePath+"/admin/", Rule{Limit: 120, Window: time.Minute})
}
