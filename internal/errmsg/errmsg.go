// Package errmsg formats ruyierr.Error values (and bare errors) into
// human-readable messages with possible causes and actionable suggestions.
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// ErrorContext provides additional context for error formatting.
type ErrorContext struct {
	// PackageName is the atom/package name involved, used in suggestions.
	PackageName string
}

// Format returns a formatted error message with possible causes and
// suggestions. ctx may be nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	var rErr *ruyierr.Error
	if errors.As(err, &rErr) {
		return formatRuyiError(rErr, ctx)
	}

	errMsg := err.Error()

	var netErr net.Error
	if errors.As(err, &netErr) {
		return formatNetworkError(netErr)
	}
	if isNetworkError(errMsg) {
		return formatGenericNetworkError(errMsg)
	}
	if isPermissionError(errMsg) {
		return formatPermissionError(errMsg)
	}

	return errMsg
}

func formatRuyiError(err *ruyierr.Error, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	switch err.Kind {
	case ruyierr.BadAtomSyntax:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Atom uses an unsupported form (expected name, slug:<id>, or name(expr))\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check the atom syntax against `ruyi list`'s package names\n")

	case ruyierr.NoSatisfyingVersion, ruyierr.NoSuchPackage:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - No version in the metadata repository matches the constraint\n")
		sb.WriteString("  - The package name is misspelled\n")
		sb.WriteString("\nSuggestions:\n")
		if ctx != nil && ctx.PackageName != "" {
			sb.WriteString(fmt.Sprintf("  - Run 'ruyi list %s' to see available versions\n", ctx.PackageName))
		} else {
			sb.WriteString("  - Run 'ruyi list <package>' to see available versions\n")
		}
		sb.WriteString("  - Pass --prereleases to consider prerelease versions\n")

	case ruyierr.FetchFailedAllURLs:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - All mirrors for this distfile are unavailable\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check your internet connection and retry\n")
		sb.WriteString("  - Verify repo.remote in config.toml still resolves\n")

	case ruyierr.ChecksumMismatch, ruyierr.SizeMismatch:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The distfile was corrupted in transit or on disk\n")
		sb.WriteString("  - The manifest declares a stale checksum/size\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Delete the cached distfile and retry the install\n")

	case ruyierr.QuirksUnsatisfied:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The profile requires quirks the toolchain does not declare\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Pick a toolchain whose quirks superset the profile's required quirks\n")

	case ruyierr.NoBinaryForHost:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - This package ships no distfile for the running host\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check 'ruyi entity describe' for the package's supported hosts\n")

	case ruyierr.ExternalToolMissing:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - A required external tool (git, tar, ...) is not on PATH\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Install the missing tool and retry\n")

	default:
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Try again in a few minutes\n")
		sb.WriteString("  - Report the issue if it persists\n")
	}

	return sb.String()
}

func formatNetworkError(err net.Error) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	if err.Timeout() {
		sb.WriteString("  - Request timed out\n")
		sb.WriteString("  - Slow or unstable network connection\n")
	} else {
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - DNS resolution failure\n")
	}
	sb.WriteString("  - Firewall or proxy blocking the connection\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")

	return sb.String()
}

func formatGenericNetworkError(errMsg string) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue\n")
	sb.WriteString("  - DNS resolution failure\n")
	sb.WriteString("  - Service temporarily unavailable\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")

	return sb.String()
}

func formatPermissionError(errMsg string) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Insufficient permissions on the ruyi data/cache directories\n")
	sb.WriteString("  - File or directory owned by a different user\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check permissions on RUYI_HOME / the XDG data and cache dirs\n")

	return sb.String()
}

func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "i/o timeout")
}

func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted")
}
