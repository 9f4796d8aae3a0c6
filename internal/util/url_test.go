package util

import "testing"

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, segment, want string
	}{
		{"https://backend.example.com", "users/5", "https://backend.example.com/users/5"},
		{"https://backend.example.com/", "users/5", "https://backend.example.com/users/5"},
		{"https://backend.example.com/", "/users/5", "https://backend.example.com/users/5"},
		{"https://backend.example.com", "", "https://backend.example.com"},
		{"https://backend.example.com/v1", "users", "https://backend.example.com/v1/users"},
		{"/api", "/auth/login", "/api/auth/login"},
		{"/api", "auth/logout", "/api/auth/logout"},
		{"", "auth/logout", "auth/logout"},
		{"https://backend.example.com", "/", "https://backend.example.com/"},
	}

	for _, tt := range tests {
		if got := JoinURL(tt.base, tt.segment); got != tt.want {
			t.Errorf("JoinURL(%q, %q) = %q, want %q", tt.base, tt.segment, got, tt.want)
		}
	}
}

func TestStripPrefixOnce(t *testing.T) {
	tests := []struct {
		path, prefix, want string
		ok                 bool
	}{
		{"/api/users/5", "/api/", "users/5", true},
		{"/api/", "/api/", "", true},
		{"/api/api/x", "/api/", "api/x", true},
		{"/apix/users", "/api/", "/apix/users", false},
		{"/other", "/api/", "/other", false},
	}

	for _, tt := range tests {
		got, ok := StripPrefixOnce(tt.path, tt.prefix)
		if got != tt.want || ok != tt.ok {
			t.Errorf("StripPrefixOnce(%q, %q) = (%q, %v), want (%q, %v)", tt.path, tt.prefix, got, ok, tt.want, tt.ok)
		}
	}
}
