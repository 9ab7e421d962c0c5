package utils

import (
	"net/http/httptest"
	"testing"
)

func TestParseHostNoPort(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"example.com":        "example.com",
		"example.com:8080":   "example.com",
		"10.0.0.1:443":       "10.0.0.1",
		"[2001:db8::1]:443":  "2001:db8::1",
		"[2001:db8::1]":      "2001:db8::1",
		"marks.internal.lan": "marks.internal.lan",
	}
	for in, want := range tests {
		if got := ParseHostNoPort(in); got != want {
			t.Errorf("ParseHostNoPort(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", nil, false, "192.0.2.1"},
		{"headers ignored without trust", map[string]string{"X-Forwarded-For": "203.0.113.9"}, false, "192.0.2.1"},
		{"cloudflare first", map[string]string{"CF-Connecting-IP": "198.51.100.7", "X-Forwarded-For": "203.0.113.9"}, true, "198.51.100.7"},
		{"left-most forwarded", map[string]string{"X-Forwarded-For": " 203.0.113.9 , 10.0.0.1"}, true, "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.10"}, true, "203.0.113.10"},
		{"trusted but absent", nil, true, "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil) // RemoteAddr 192.0.2.1:1234
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", " 192.168.1.10 ", "", "not-an-ip", "2001:db8::/32"})
	if m.IsEmpty() {
		t.Fatal("matcher should not be empty")
	}

	tests := map[string]bool{
		"10.1.2.3":        true,
		"11.0.0.1":        false,
		"192.168.1.10":    true,
		"192.168.1.11":    false,
		"::ffff:10.0.0.5": true,
		"2001:db8::42":    true,
		"2001:db9::1":     false,
		"garbage":         false,
	}
	for ip, want := range tests {
		if got := m.Allow(ip); got != want {
			t.Errorf("Allow(%q) = %v, want %v", ip, got, want)
		}
	}

	if !NewIPMatcher([]string{" ", "nope"}).IsEmpty() {
		t.Error("matcher of invalid entries should be empty")
	}
}
