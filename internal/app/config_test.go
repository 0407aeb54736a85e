package app

import (
	"reflect"
	"testing"
)

func TestParseOrigins(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"https://a.example", []string{"https://a.example"}},
		{" https://a.example , https://b.example ,", []string{"https://a.example", "https://b.example"}},
	}
	for _, tc := range cases {
		if got := ParseOrigins(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseOrigins(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeWSPath(t *testing.T) {
	cases := map[string]string{
		"":     "/ws",
		"ws":   "/ws",
		"/ws":  "/ws",
		"join": "/join",
	}
	for in, want := range cases {
		if got := NormalizeWSPath(in); got != want {
			t.Fatalf("NormalizeWSPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetenv(t *testing.T) {
	t.Setenv("RELAY_TEST_KEY", "set")
	if got := Getenv("RELAY_TEST_KEY", "fallback"); got != "set" {
		t.Fatalf("expected env value, got %q", got)
	}
	if got := Getenv("RELAY_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
