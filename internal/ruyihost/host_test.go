package ruyihost

import "testing"

func TestCanonicalizeArch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"amd64", "x86_64"},
		{"em64t", "x86_64"},
		{"x86_64", "x86_64"},
		{"arm64", "aarch64"},
		{"aarch64", "aarch64"},
		{"x86", "i686"},
		{"i386", "i686"},
		{"riscv64", "riscv64"},
	}
	for _, tt := range tests {
		if got := canonicalizeArch(tt.in); got != tt.want {
			t.Errorf("canonicalizeArch(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalizeOS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"win32", "windows"},
		{"windows", "windows"},
		{"Linux", "linux"},
		{"Darwin", "darwin"},
	}
	for _, tt := range tests {
		if got := canonicalizeOS(tt.in); got != tt.want {
			t.Errorf("canonicalizeOS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	h := Host{OS: "Win32", Arch: "AMD64"}
	once := h.Canonicalize()
	twice := once.Canonicalize()
	if once != twice {
		t.Errorf("canonicalize not idempotent: %v != %v", once, twice)
	}
}

func TestParse(t *testing.T) {
	h, err := Parse("linux/x86_64")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.OS != "linux" || h.Arch != "x86_64" {
		t.Errorf("got %+v", h)
	}

	if _, err := Parse("linux"); err == nil {
		t.Error("expected error for malformed tuple")
	}
}

func TestString(t *testing.T) {
	h := Host{OS: "linux", Arch: "riscv64"}
	if h.String() != "linux/riscv64" {
		t.Errorf("got %q", h.String())
	}
}

func TestMatches(t *testing.T) {
	h := Host{OS: "linux", Arch: "amd64"}
	if !h.Matches(Host{OS: "linux", Arch: "x86_64"}) {
		t.Error("expected amd64 to match x86_64 after canonicalization")
	}
	if h.Matches(Host{OS: "darwin", Arch: "x86_64"}) {
		t.Error("expected OS mismatch to fail")
	}
}
