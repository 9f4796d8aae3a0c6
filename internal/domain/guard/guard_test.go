package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard_Decide(t *testing.T) {
	g := New(Options{})

	tests := []struct {
		name     string
		path     string
		loggedIn bool
		want     Decision
	}{
		{name: "private page anonymous", path: "/", loggedIn: false, want: RedirectTo("/login")},
		{name: "private page logged in", path: "/", loggedIn: true, want: Proceed()},
		{name: "nested private anonymous", path: "/settings/profile", loggedIn: false, want: RedirectTo("/login")},
		{name: "nested private logged in", path: "/settings/profile", loggedIn: true, want: Proceed()},
		{name: "login anonymous", path: "/login", loggedIn: false, want: Proceed()},
		{name: "login logged in", path: "/login", loggedIn: true, want: Proceed()},
		{name: "register anonymous", path: "/register", loggedIn: false, want: Proceed()},
		{name: "register logged in", path: "/register", loggedIn: true, want: Proceed()},
		{name: "reset anonymous", path: "/reset-password", loggedIn: false, want: Proceed()},
		{name: "reset logged in", path: "/reset-password", loggedIn: true, want: Proceed()},
		{name: "logout anonymous", path: "/logout", loggedIn: false, want: RedirectTo("/login")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Decide(tt.path, tt.loggedIn))
		})
	}
}

func TestGuard_ExactMatchOnly(t *testing.T) {
	g := New(Options{})

	variants := []string{
		"/login/",
		"/login?next=/dashboard",
		"/Login",
		"/register/",
		"/reset-password?token=abc",
		"/reset-password#top",
		"login",
		"",
	}
	for _, v := range variants {
		t.Run(v, func(t *testing.T) {
			assert.False(t, g.IsPublic(v))
			assert.Equal(t, RedirectTo("/login"), g.Decide(v, false))
			assert.Equal(t, Proceed(), g.Decide(v, true))
		})
	}
}

func TestGuard_CustomOptions(t *testing.T) {
	g := New(Options{PublicPaths: []string{"/signin"}, LoginPath: "/signin"})

	assert.Equal(t, "/signin", g.LoginPath())
	assert.Equal(t, Proceed(), g.Decide("/signin", false))
	assert.Equal(t, RedirectTo("/signin"), g.Decide("/login", false))
}
