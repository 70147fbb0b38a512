package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy_Classify(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		method string
		path   string
		want   Access
	}{
		{"GET", "/api/books", AccessPublic},
		{"GET", "/api/books/", AccessPublic},
		{"GET", "/api/books/3f2a", AccessPublic},
		{"GET", "/api/books/3f2a/reviews", AccessPublic},
		{"GET", "/api/books/3f2a/download", AccessProtected},
		{"POST", "/api/books", AccessProtected},
		{"DELETE", "/api/books/3f2a", AccessProtected},
		{"POST", "/api/books/3f2a/reviews", AccessProtected},
		{"POST", "/api/books/3f2a/pdf", AccessProtected},
		{"POST", "/api/auth/register", AccessPublic},
		{"POST", "/api/auth/login", AccessPublic},
		{"POST", "/api/auth/refresh", AccessPublic},
		{"GET", "/api/auth/login", AccessProtected},
		{"GET", "/api/auth/me", AccessProtected},
		{"GET", "/health/live", AccessPublic},
		{"GET", "/health/ready", AccessPublic},
		{"GET", "/health", AccessProtected},
		{"GET", "/docs", AccessPublic},
		{"GET", "/v3/api-docs", AccessPublic},
		{"GET", "/v3/api-docs/swagger-config", AccessPublic},
		{"POST", "/v3/api-docs", AccessPublic},
		{"GET", "/v3/api-docsx", AccessProtected},
		{"GET", "/api/admin/metrics", AccessProtected},
		{"PUT", "/api/admin/users/1/role", AccessProtected},
		{"DELETE", "/api/reviews/1", AccessProtected},
		{"GET", "/api/books/../admin/metrics", AccessProtected},
		{"get", "/api/books", AccessPublic},
		{"GET", "", AccessProtected},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, policy.Classify(tc.method, tc.path))
		})
	}
}

func TestPolicy_FirstMatchWins(t *testing.T) {
	narrowFirst := MustPolicy(AccessPublic,
		Rule{Method: "GET", Pattern: "/files/*/secret", Access: AccessProtected},
		Rule{Method: "GET", Pattern: "/files/**", Access: AccessPublic},
	)
	assert.Equal(t, AccessProtected, narrowFirst.Classify("GET", "/files/a/secret"))
	assert.Equal(t, AccessPublic, narrowFirst.Classify("GET", "/files/a/other"))

	broadFirst := MustPolicy(AccessPublic,
		Rule{Method: "GET", Pattern: "/files/**", Access: AccessPublic},
		Rule{Method: "GET", Pattern: "/files/*/secret", Access: AccessProtected},
	)
	assert.Equal(t, AccessPublic, broadFirst.Classify("GET", "/files/a/secret"))
}

func TestPolicy_MethodAndFallback(t *testing.T) {
	policy := MustPolicy(AccessPublic,
		Rule{Method: "post", Pattern: "/items", Access: AccessProtected},
		Rule{Pattern: "/admin/**", Access: AccessProtected},
	)

	assert.Equal(t, AccessProtected, policy.Classify("POST", "/items"))
	assert.Equal(t, AccessPublic, policy.Classify("GET", "/items"), "unmatched falls back")
	assert.Equal(t, AccessProtected, policy.Classify("DELETE", "/admin"))
	assert.Equal(t, AccessProtected, policy.Classify("GET", "/admin/a/b/c"))
	assert.Equal(t, AccessPublic, policy.Classify("GET", "/administrator"))

	rules := policy.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "POST", rules[0].Method)
	assert.Equal(t, "*", rules[1].Method)
}

func TestNewPolicy_RejectsInvalidPatterns(t *testing.T) {
	_, err := NewPolicy(AccessProtected, Rule{Method: "GET", Pattern: "api/books"})
	assert.Error(t, err)

	_, err = NewPolicy(AccessProtected, Rule{Method: "GET", Pattern: "/api/[books"})
	assert.Error(t, err)

	assert.Panics(t, func() {
		MustPolicy(AccessProtected, Rule{Method: "GET", Pattern: "relative"})
	})
}

func TestAccess_String(t *testing.T) {
	assert.Equal(t, "public", AccessPublic.String())
	assert.Equal(t, "protected", AccessProtected.String())
}
