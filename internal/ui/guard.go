package ui

import (
	"net/url"
	"strings"
	"sync"

	"lessonlab-backend/internal/session"
)

type DecisionKind int

const (
	ShowLoading DecisionKind = iota
	ShowContent
	Redirecting
)

func (k DecisionKind) String() string {
	switch k {
	case ShowLoading:
		return "loading"
	case ShowContent:
		return "content"
	default:
		return "redirecting"
	}
}

// Decision says what a protected page renders. Navigate is true only on the
// render that should issue the redirect.
type Decision struct {
	Kind     DecisionKind
	Location string
	Navigate bool
}

// RouteGuard protects a page. The redirect to FallbackPath fires once per
// transition into the unauthenticated state.
type RouteGuard struct {
	FallbackPath string
	Param        string

	mu        sync.Mutex
	scheduled bool
}

func NewRouteGuard(fallbackPath string) *RouteGuard {
	if fallbackPath == "" {
		fallbackPath = "/login"
	}
	return &RouteGuard{FallbackPath: fallbackPath, Param: "redirect"}
}

func (g *RouteGuard) Decide(status session.Status, currentPath string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch status.Kind {
	case session.Loading:
		return Decision{Kind: ShowLoading}
	case session.Authenticated:
		g.scheduled = false
		return Decision{Kind: ShowContent}
	}

	d := Decision{Kind: Redirecting, Location: g.location(currentPath)}
	if !g.scheduled {
		g.scheduled = true
		d.Navigate = true
	}
	return d
}

// MarkRedirected records that the redirect was already issued, for guards
// rebuilt per request from state the browser carries.
func (g *RouteGuard) MarkRedirected() {
	g.mu.Lock()
	g.scheduled = true
	g.mu.Unlock()
}

func (g *RouteGuard) location(currentPath string) string {
	param := g.Param
	if param == "" {
		param = "redirect"
	}
	sep := "?"
	if strings.Contains(g.FallbackPath, "?") {
		sep = "&"
	}
	return g.FallbackPath + sep + param + "=" + url.QueryEscape(currentPath)
}

// SafeReturnPath returns target when it is a local path, else fallback.
func SafeReturnPath(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return target
}
