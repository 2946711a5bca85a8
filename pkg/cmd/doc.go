// Package cmd provides a transport-agnostic command core: a raw text line is
// split into shell-like tokens, then matched against an immutable tree of
// groups and commands. Role requirements are checked at every level of the
// tree while descending, and the remaining tokens are bound to the matched
// command's declared argument slots.
//
// How a match is executed (Discord message, CLI dry-run, tests) is defined by
// callers; this package only resolves text into a *Match or a typed failure.
package cmd
