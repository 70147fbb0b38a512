package auth

import (
	"fmt"
	"path"
	"strings"
)

// Access is the authentication requirement for a route.
type Access int

const (
	AccessProtected Access = iota
	AccessPublic
)

func (a Access) String() string {
	if a == AccessPublic {
		return "public"
	}
	return "protected"
}

// Rule maps a method and path pattern to an access requirement.
// Method "*" matches any method. In Pattern, "*" matches exactly one path
// segment and a trailing "/**" matches the prefix itself and everything below it.
type Rule struct {
	Method  string
	Pattern string
	Access  Access
}

type compiledRule struct {
	Rule
	prefix string
	deep   bool
}

// Policy evaluates rules in order; the first match wins.
type Policy struct {
	rules    []compiledRule
	fallback Access
}

// NewPolicy compiles rules. Unmatched requests get fallback.
func NewPolicy(fallback Access, rules ...Rule) (*Policy, error) {
	p := &Policy{fallback: fallback, rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("pattern %q must start with /", r.Pattern)
		}
		if _, err := path.Match(r.Pattern, "/"); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", r.Pattern, err)
		}
		cr := compiledRule{Rule: r}
		cr.Method = strings.ToUpper(r.Method)
		if cr.Method == "" {
			cr.Method = "*"
		}
		if strings.HasSuffix(r.Pattern, "/**") {
			cr.deep = true
			cr.prefix = strings.TrimSuffix(r.Pattern, "/**")
		}
		p.rules = append(p.rules, cr)
	}
	return p, nil
}

// MustPolicy is NewPolicy for static tables.
func MustPolicy(fallback Access, rules ...Rule) *Policy {
	p, err := NewPolicy(fallback, rules...)
	if err != nil {
		panic(err)
	}
	return p
}

// Classify returns the access requirement for method and path.
func (p *Policy) Classify(method, reqPath string) Access {
	method = strings.ToUpper(method)
	reqPath = cleanPath(reqPath)
	for _, r := range p.rules {
		if r.Method != "*" && r.Method != method {
			continue
		}
		if r.matches(reqPath) {
			return r.Access
		}
	}
	return p.fallback
}

// Rules returns a copy of the table in evaluation order.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, 0, len(p.rules))
	for _, r := range p.rules {
		out = append(out, r.Rule)
	}
	return out
}

func (r compiledRule) matches(reqPath string) bool {
	if !r.deep {
		ok, _ := path.Match(r.Pattern, reqPath)
		return ok
	}
	want := segments(r.prefix)
	got := segments(reqPath)
	if len(got) < len(want) {
		return false
	}
	for i, seg := range want {
		if ok, _ := path.Match(seg, got[i]); !ok {
			return false
		}
	}
	return true
}

func segments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean(p)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	return cleaned
}

// DefaultPolicy is the service's exemption table. Everything not listed requires a token.
func DefaultPolicy() *Policy {
	return MustPolicy(AccessProtected,
		Rule{Method: "*", Pattern: "/v3/api-docs/**", Access: AccessPublic},
		Rule{Method: "GET", Pattern: "/docs", Access: AccessPublic},
		Rule{Method: "GET", Pattern: "/health/*", Access: AccessPublic},
		Rule{Method: "POST", Pattern: "/api/auth/register", Access: AccessPublic},
		Rule{Method: "POST", Pattern: "/api/auth/login", Access: AccessPublic},
		Rule{Method: "POST", Pattern: "/api/auth/refresh", Access: AccessPublic},
		Rule{Method: "GET", Pattern: "/api/books/*/download", Access: AccessProtected},
		Rule{Method: "GET", Pattern: "/api/books", Access: AccessPublic},
		Rule{Method: "GET", Pattern: "/api/books/*", Access: AccessPublic},
		Rule{Method: "GET", Pattern: "/api/books/*/reviews", Access: AccessPublic},
	)
}
