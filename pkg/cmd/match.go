package cmd

import (
	"context"
	"fmt"
	"strings"
)

// Match is a resolved command with its bound arguments.
type Match struct {
	Command NodeID
	Path    []string
	Args    Args
}

// Name returns the space-joined command path, e.g. "categories add".
func (m *Match) Name() string {
	return strings.Join(m.Path, " ")
}

// Match resolves tokens against the tree.
//
// Matching starts at the roots when start is Root, otherwise at the given
// group after checking that group's role. Each token names a child; roles
// are checked eagerly on every node entered, so a caller lacking a group's
// role gets a PermissionDenied failure before anything below that group is
// considered. The first command reached binds the remaining tokens to its
// slots. There is no backtracking.
//
// ErrNotMatched is returned when the tokens do not address a command. Other
// failures are *MatchError values. Errors from auth are returned wrapped.
func (t *Tree) Match(ctx context.Context, start NodeID, tokens []string, auth Authorizer, caller Caller) (*Match, error) {
	cur := Root
	if start != Root {
		if start < 0 || int(start) >= len(t.nodes) || !t.nodes[start].group {
			return nil, &ConfigError{Reason: fmt.Sprintf("match start %d is not a group", start)}
		}
		if err := t.authorize(ctx, auth, caller, start); err != nil {
			return nil, err
		}
		cur = start
	}

	pos := 0
	for {
		var next NodeID
		if pos >= len(tokens) {
			if cur == Root || t.nodes[cur].def == Root {
				return nil, ErrNotMatched
			}
			next = t.nodes[cur].def
		} else {
			id, ok := t.child(cur, tokens[pos])
			if !ok {
				return nil, ErrNotMatched
			}
			next = id
			pos++
		}

		if err := t.authorize(ctx, auth, caller, next); err != nil {
			return nil, err
		}
		n := &t.nodes[next]
		if n.group {
			cur = next
			continue
		}

		args, err := bind(n, tokens[pos:])
		if err != nil {
			return nil, err
		}
		return &Match{
			Command: next,
			Path:    append([]string(nil), n.path...),
			Args:    args,
		}, nil
	}
}

func (t *Tree) authorize(ctx context.Context, auth Authorizer, caller Caller, id NodeID) error {
	n := &t.nodes[id]
	if n.role == "" {
		return nil
	}
	if auth == nil {
		return &MatchError{Kind: PermissionDenied, Path: n.path, Role: n.role}
	}
	ok, err := auth.Allow(ctx, n.role, caller)
	if err != nil {
		return fmt.Errorf("cmd: checking role %q for %s: %w", n.role, strings.Join(n.path, " "), err)
	}
	if !ok {
		return &MatchError{Kind: PermissionDenied, Path: n.path, Role: n.role}
	}
	return nil
}

func bind(n *node, rest []string) (Args, error) {
	args := Args{
		values: make(map[string]any, len(n.args)),
		raw:    make(map[string][]string, len(n.args)),
	}
	pos := 0
	for _, slot := range n.args {
		if slot.Variadic {
			if pos >= len(rest) {
				if !slot.Optional {
					return Args{}, &MatchError{Kind: MissingArgument, Path: n.path, Arg: slot.Name}
				}
				break
			}
			values := make([]any, 0, len(rest)-pos)
			for _, tok := range rest[pos:] {
				v, err := slot.parse(tok)
				if err != nil {
					return Args{}, unknownArgument(n, slot, tok, err)
				}
				values = append(values, v)
			}
			args.values[slot.Name] = values
			args.raw[slot.Name] = append([]string(nil), rest[pos:]...)
			pos = len(rest)
			break
		}

		if pos >= len(rest) {
			if slot.Optional {
				continue
			}
			return Args{}, &MatchError{Kind: MissingArgument, Path: n.path, Arg: slot.Name}
		}
		v, err := slot.parse(rest[pos])
		if err != nil {
			return Args{}, unknownArgument(n, slot, rest[pos], err)
		}
		args.values[slot.Name] = v
		args.raw[slot.Name] = []string{rest[pos]}
		pos++
	}

	if pos < len(rest) {
		return Args{}, &MatchError{Kind: TooManyArguments, Path: n.path, Value: rest[pos]}
	}
	return args, nil
}

func unknownArgument(n *node, slot Arg, tok string, err error) error {
	return &MatchError{
		Kind:     UnknownArgument,
		Path:     n.path,
		Arg:      slot.Name,
		Value:    tok,
		Expected: slot.Kind,
		Err:      err,
	}
}
