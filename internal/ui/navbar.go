package ui

import "strings"

type NavLink struct {
	Label  string
	Href   string
	Active bool
}

type NavBar struct {
	Links    []NavLink
	SignedIn bool
	// SignOutAction is the form target for the sign-out button; SignInHref
	// is shown instead when nobody is signed in.
	SignOutAction string
	SignInHref    string
}

var navLinks = []NavLink{
	{Label: "Generate", Href: "/generate"},
	{Label: "Library", Href: "/library"},
}

func BuildNavBar(currentPath string, signedIn bool) NavBar {
	links := make([]NavLink, len(navLinks))
	for i, l := range navLinks {
		l.Active = currentPath == l.Href || strings.HasPrefix(currentPath, l.Href+"/")
		links[i] = l
	}

	nav := NavBar{Links: links, SignedIn: signedIn}
	if signedIn {
		nav.SignOutAction = "/logout"
	} else {
		nav.SignInHref = "/login"
	}
	return nav
}
