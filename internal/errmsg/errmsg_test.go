package errmsg

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

func TestFormat_NilError(t *testing.T) {
	result := Format(nil, nil)
	if result != "" {
		t.Errorf("expected empty string for nil error, got %q", result)
	}
}

func TestFormat_GenericError(t *testing.T) {
	err := errors.New("something went wrong")
	result := Format(err, nil)
	if result != "something went wrong" {
		t.Errorf("expected original error message, got %q", result)
	}
}

func TestFormat_FetchFailedAllURLs(t *testing.T) {
	err := ruyierr.New("fetch", ruyierr.FetchFailedAllURLs, "gcc-13.2.0.tar.xz", "all URLs exhausted", nil)

	result := Format(err, &ErrorContext{PackageName: "gcc"})

	checks := []string{
		"all URLs exhausted",
		"Possible causes:",
		"Network connectivity issue",
		"Suggestions:",
		"Check your internet connection",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_NoSatisfyingVersion(t *testing.T) {
	err := ruyierr.New("atom", ruyierr.NoSatisfyingVersion, "gcc(>=99)", "no version satisfies constraint", nil)

	result := Format(err, &ErrorContext{PackageName: "gcc"})

	checks := []string{
		"no version satisfies constraint",
		"Possible causes:",
		"Suggestions:",
		"ruyi list gcc",
		"--prereleases",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_ChecksumMismatch(t *testing.T) {
	err := ruyierr.New("checksum", ruyierr.ChecksumMismatch, "gcc-13.2.0.tar.xz", "sha256 mismatch", nil)

	result := Format(err, nil)

	checks := []string{
		"sha256 mismatch",
		"Possible causes:",
		"corrupted",
		"Suggestions:",
		"Delete the cached distfile",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_WithoutContext(t *testing.T) {
	err := ruyierr.New("atom", ruyierr.NoSuchPackage, "", "package not found", nil)

	result := Format(err, nil)

	if !strings.Contains(result, "ruyi list <package>") {
		t.Errorf("expected generic suggestion, got:\n%s", result)
	}
}

func TestFormat_NetworkError(t *testing.T) {
	err := errors.New("dial tcp: connection refused")
	result := Format(err, nil)

	checks := []string{
		"connection refused",
		"Possible causes:",
		"Network connectivity issue",
		"Suggestions:",
		"Check your internet connection",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_PermissionError(t *testing.T) {
	err := errors.New("open /data/ruyi/binaries: permission denied")
	result := Format(err, nil)

	checks := []string{
		"permission denied",
		"Possible causes:",
		"Insufficient permissions",
		"Suggestions:",
		"RUYI_HOME",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

// mockNetError implements net.Error for testing.
type mockNetError struct {
	msg       string
	timeout   bool
	temporary bool
}

func (e mockNetError) Error() string   { return e.msg }
func (e mockNetError) Timeout() bool   { return e.timeout }
func (e mockNetError) Temporary() bool { return e.temporary }

var _ net.Error = mockNetError{}

func TestFormat_NetError_Timeout(t *testing.T) {
	err := mockNetError{
		msg:     "i/o timeout",
		timeout: true,
	}
	result := Format(err, nil)

	checks := []string{
		"i/o timeout",
		"Possible causes:",
		"Request timed out",
		"Suggestions:",
		"Check your internet connection",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"dial tcp: connection refused", true},
		{"connection reset by peer", true},
		{"no such host", true},
		{"i/o timeout", true},
		{"file not found", false},
		{"permission denied", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isNetworkError(tt.msg); got != tt.expected {
				t.Errorf("isNetworkError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}

func TestIsPermissionError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"permission denied", true},
		{"access denied", true},
		{"operation not permitted", true},
		{"file not found", false},
		{"connection refused", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isPermissionError(tt.msg); got != tt.expected {
				t.Errorf("isPermissionError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}
