package lease

import (
	"testing"
	"time"
)

func TestLease_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := &Lease{ExpiresAt: now}
	if !l.Expired(now) {
		t.Fatal("lease at its own expiry should be expired")
	}
	l.ExpiresAt = now.Add(time.Second)
	if l.Expired(now) {
		t.Fatal("lease before expiry should not be expired")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "simple", in: "src/main.go", want: "src/main.go", ok: true},
		{name: "backslashes", in: "src\\main.go", want: "src/main.go", ok: true},
		{name: "leading slash", in: "/src/main.go", want: "src/main.go", ok: true},
		{name: "dot segments", in: "./src/./main.go", want: "src/main.go", ok: true},
		{name: "internal dotdot", in: "src/x/../main.go", want: "src/main.go", ok: true},
		{name: "escaping dotdot", in: "../etc/passwd", want: "", ok: false},
		{name: "empty", in: "", want: "", ok: false},
		{name: "only dots", in: "./.", want: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			if ok != tt.ok {
				t.Fatalf("Normalize(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
