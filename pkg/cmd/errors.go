package cmd

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotMatched means the line does not address any command of the tree.
// It is a routing signal rather than a failure: another tree may claim it.
var ErrNotMatched = errors.New("cmd: not matched")

// Sentinels for match failures. A *MatchError unwraps to exactly one of them.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrMissingArgument  = errors.New("missing argument")
	ErrTooManyArguments = errors.New("too many arguments")
	ErrUnknownArgument  = errors.New("unknown argument")
)

// ErrConfiguration is wrapped by every *ConfigError.
var ErrConfiguration = errors.New("configuration error")

// FailureKind classifies a *MatchError.
type FailureKind int

const (
	PermissionDenied FailureKind = iota + 1
	MissingArgument
	TooManyArguments
	UnknownArgument
)

func (k FailureKind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case MissingArgument:
		return "missing_argument"
	case TooManyArguments:
		return "too_many_arguments"
	case UnknownArgument:
		return "unknown_argument"
	default:
		return "unknown"
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case PermissionDenied:
		return ErrPermissionDenied
	case MissingArgument:
		return ErrMissingArgument
	case TooManyArguments:
		return ErrTooManyArguments
	case UnknownArgument:
		return ErrUnknownArgument
	default:
		return nil
	}
}

// MatchError is a recoverable matching failure. Its message is meant to be
// shown to the user who typed the line.
type MatchError struct {
	Kind FailureKind
	// Path of the node the failure happened at.
	Path []string
	// Role that was required, for PermissionDenied.
	Role string
	// Arg is the slot name, for argument failures.
	Arg string
	// Value is the offending token, for UnknownArgument and TooManyArguments.
	Value string
	// Expected describes the slot kind, for UnknownArgument.
	Expected Kind
	// Err is the coercion error, for UnknownArgument.
	Err error
}

func (e *MatchError) Error() string {
	path := strings.Join(e.Path, " ")
	switch e.Kind {
	case PermissionDenied:
		return fmt.Sprintf("you need the `%s` role to use `%s`", e.Role, path)
	case MissingArgument:
		return fmt.Sprintf("missing argument `%s` for `%s`", e.Arg, path)
	case TooManyArguments:
		return fmt.Sprintf("too many arguments for `%s`, unexpected `%s`", path, e.Value)
	case UnknownArgument:
		return fmt.Sprintf("invalid value `%s` for argument `%s` of `%s` (expected %s)", e.Value, e.Arg, path, e.Expected)
	default:
		return "cmd: match failed"
	}
}

func (e *MatchError) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ConfigError reports a malformed tree. It is returned when the tree is
// built, never while matching.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "cmd: " + e.Reason
	}
	return fmt.Sprintf("cmd: %s: %s", e.Path, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }
