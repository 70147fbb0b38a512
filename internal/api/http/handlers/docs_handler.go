package handlers

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bookshelf-labs/library-service/internal/auth"
)

// DocsHandler lists the registered routes and whether each needs a token.
type DocsHandler struct {
	routes func() []fiber.Route
	policy *auth.Policy
}

// NewDocsHandler constructs handler.
func NewDocsHandler(routes func() []fiber.Route, policy *auth.Policy) *DocsHandler {
	return &DocsHandler{routes: routes, policy: policy}
}

type routeDoc struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Access string `json:"access"`
}

// Index GET /v3/api-docs and GET /docs.
func (h *DocsHandler) Index(c *fiber.Ctx) error {
	seen := map[string]struct{}{}
	docs := []routeDoc{}
	for _, r := range h.routes() {
		if r.Method == fiber.MethodHead || r.Method == fiber.MethodOptions {
			continue
		}
		key := r.Method + " " + r.Path
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		docs = append(docs, routeDoc{
			Method: r.Method,
			Path:   r.Path,
			Access: h.policy.Classify(r.Method, samplePath(r)).String(),
		})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Path == docs[j].Path {
			return docs[i].Method < docs[j].Method
		}
		return docs[i].Path < docs[j].Path
	})

	rules := h.policy.Rules()
	exempt := make([]fiber.Map, 0, len(rules))
	for _, r := range rules {
		exempt = append(exempt, fiber.Map{"method": r.Method, "pattern": r.Pattern, "access": r.Access.String()})
	}
	return c.JSON(fiber.Map{"routes": docs, "access_rules": exempt})
}

// samplePath substitutes route parameters so the path can be classified.
func samplePath(r fiber.Route) string {
	path := r.Path
	for _, p := range r.Params {
		if strings.Contains(path, ":"+p+"?") {
			path = strings.Replace(path, ":"+p+"?", "x", 1)
			continue
		}
		path = strings.Replace(path, ":"+p, "x", 1)
	}
	return path
}
