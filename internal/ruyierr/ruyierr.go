// Package ruyierr provides the tagged error taxonomy shared across ruyi's
// core packages, mirroring spec.md §7: user-input, environment, integrity,
// policy and internal failure kinds, each surfaced as a typed error rather
// than a bare string.
package ruyierr

import "fmt"

// Kind classifies an Error into one of spec.md §7's five buckets, and
// further into a specific tag within that bucket.
type Kind string

const (
	// User-input errors: the caller gave ruyi something it cannot act on.
	BadAtomSyntax         Kind = "bad_atom_syntax"
	UnknownProfile        Kind = "unknown_profile"
	NoSatisfyingVersion   Kind = "no_satisfying_version"
	NoSuchPackage         Kind = "no_such_package"
	InvalidConfigKey      Kind = "invalid_config_key"
	InvalidConfigSection  Kind = "invalid_config_section"
	InvalidConfigValue    Kind = "invalid_config_value"
	MalformedConfigFile   Kind = "malformed_config_file"

	// Environment errors: the surrounding system failed to cooperate.
	ExternalToolMissing   Kind = "external_tool_missing"
	RemoteURLMismatch     Kind = "remote_url_mismatch"
	CannotFastForward     Kind = "cannot_fast_forward"
	FetchFailedAllURLs    Kind = "fetch_failed_all_urls"
	UnrecognizedPackFormat Kind = "unrecognized_pack_format"

	// Integrity errors: bytes on disk do not match what was promised.
	ChecksumMismatch Kind = "checksum_mismatch"
	SizeMismatch     Kind = "size_mismatch"

	// Policy errors: the operation is well-formed but disallowed.
	QuirksUnsatisfied         Kind = "quirks_unsatisfied"
	DuplicateTarget           Kind = "duplicate_target"
	NoBinaryForHost           Kind = "no_binary_for_host"
	FetchRestricted           Kind = "fetch_restricted"
	UntrackedInstallDirPresent Kind = "untracked_install_dir_present"

	// Internal errors: the repo or environment is in a state the core
	// cannot safely proceed from.
	EntityValidationError Kind = "entity_validation_error"
	NotInstallable        Kind = "not_installable"
	MissingGccLibDir      Kind = "missing_gcc_lib_dir"
)

// Class groups a Kind into the five §7 propagation buckets, which
// determines how the installer (C11) reacts: retry, abort, or fatal.
type Class int

const (
	ClassUserInput Class = iota
	ClassEnvironment
	ClassIntegrity
	ClassPolicy
	ClassInternal
)

var kindClass = map[Kind]Class{
	BadAtomSyntax:        ClassUserInput,
	UnknownProfile:       ClassUserInput,
	NoSatisfyingVersion:  ClassUserInput,
	NoSuchPackage:        ClassUserInput,
	InvalidConfigKey:     ClassUserInput,
	InvalidConfigSection: ClassUserInput,
	InvalidConfigValue:   ClassUserInput,
	MalformedConfigFile:  ClassUserInput,

	ExternalToolMissing:    ClassEnvironment,
	RemoteURLMismatch:      ClassEnvironment,
	CannotFastForward:      ClassEnvironment,
	FetchFailedAllURLs:     ClassEnvironment,
	UnrecognizedPackFormat: ClassEnvironment,

	ChecksumMismatch: ClassIntegrity,
	SizeMismatch:     ClassIntegrity,

	QuirksUnsatisfied:          ClassPolicy,
	DuplicateTarget:            ClassPolicy,
	NoBinaryForHost:            ClassPolicy,
	FetchRestricted:            ClassPolicy,
	UntrackedInstallDirPresent: ClassPolicy,

	EntityValidationError: ClassInternal,
	NotInstallable:        ClassInternal,
	MissingGccLibDir:      ClassInternal,
}

// ClassOf returns the propagation class for a Kind, defaulting to
// ClassInternal for unregistered kinds (treated as fatal/unexpected).
func ClassOf(k Kind) Class {
	if c, ok := kindClass[k]; ok {
		return c
	}
	return ClassInternal
}

// ExitCode maps a Class to the process exit code spec.md §6 assigns it:
// 1 for recoverable user/environment errors, 2 for data-model/integrity
// and policy errors that indicate bad input data rather than bad usage.
func (c Class) ExitCode() int {
	switch c {
	case ClassUserInput, ClassEnvironment:
		return 1
	default:
		return 2
	}
}

// Error is the single tagged-error type every ruyi component returns for
// classified failures. Component is the originating package ("fetch",
// "atom", "ledger", ...) and Subject is the object being acted on
// (a URL, an atom string, a package name) used to enrich messages.
type Error struct {
	Kind    Kind
	Component string
	Subject string
	Message string
	Err     error
}

func (e *Error) Error() string {
	subject := e.Subject
	if subject != "" {
		subject = " " + subject
	}
	if e.Err != nil {
		return fmt.Sprintf("%s:%s %s: %v", e.Component, subject, e.Message, e.Err)
	}
	return fmt.Sprintf("%s:%s %s", e.Component, subject, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Class returns the propagation class for this error's Kind.
func (e *Error) Class() Class { return ClassOf(e.Kind) }

// New constructs a classified Error.
func New(component string, kind Kind, subject, message string, cause error) *Error {
	return &Error{Component: component, Kind: kind, Subject: subject, Message: message, Err: cause}
}

// Is reports whether err is a *Error with the given Kind, supporting
// errors.Is(err, ruyierr.Kind(...)) style checks via a thin wrapper
// (see IsKind below); Is itself satisfies the stdlib errors.Is contract
// for comparing two *Error values by Kind and Subject.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Subject != "" && t.Subject != e.Subject {
		return false
	}
	return true
}

// IsKind reports whether err is a *ruyierr.Error carrying the given Kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if ee, ok := err.(*Error); ok {
			e = ee
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
