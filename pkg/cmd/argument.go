package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the type a token must coerce to when bound to an argument slot.
type Kind int

const (
	String Kind = iota
	Int
	Bool
	// ID is a Discord snowflake. Channel, user and role mentions are accepted
	// and reduced to the bare number.
	ID
)

func (k Kind) String() string {
	switch k {
	case String:
		return "text"
	case Int:
		return "integer"
	case Bool:
		return "true/false"
	case ID:
		return "id or mention"
	default:
		return "unknown"
	}
}

// Arg declares one positional argument slot of a command.
type Arg struct {
	Name     string
	Kind     Kind
	Help     string
	Optional bool
	// Variadic slots take every remaining token. Only the last slot may be
	// variadic.
	Variadic bool
}

// Required declares a required slot.
func Required(name string, kind Kind) Arg {
	return Arg{Name: name, Kind: kind}
}

// Optional declares an optional slot.
func Optional(name string, kind Kind) Arg {
	return Arg{Name: name, Kind: kind, Optional: true}
}

// Rest declares an optional trailing text slot taking all remaining tokens.
func Rest(name string) Arg {
	return Arg{Name: name, Kind: String, Optional: true, Variadic: true}
}

func (a Arg) usage() string {
	name := a.Name
	switch a.Kind {
	case Int:
		name += ":int"
	case Bool:
		name += ":bool"
	case ID:
		name += ":id"
	}
	if a.Variadic {
		name += "..."
	}
	if a.Optional {
		return "[" + name + "]"
	}
	return "<" + name + ">"
}

func (a Arg) parse(tok string) (any, error) {
	switch a.Kind {
	case String:
		return tok, nil
	case Int:
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	case Bool:
		return parseBool(tok)
	case ID:
		return parseID(tok)
	default:
		return nil, fmt.Errorf("unsupported argument kind %d", a.Kind)
	}
}

func parseBool(tok string) (bool, error) {
	switch strings.ToLower(tok) {
	case "true", "yes", "y", "on", "1":
		return true, nil
	case "false", "no", "n", "off", "0":
		return false, nil
	}
	return false, errors.New("not a boolean")
}

func parseID(tok string) (string, error) {
	s := tok
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = s[1 : len(s)-1]
		for _, p := range []string{"@!", "@&", "@", "#"} {
			if strings.HasPrefix(s, p) {
				s = s[len(p):]
				break
			}
		}
	}
	if s == "" || len(s) > 20 {
		return "", errors.New("not a snowflake")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", errors.New("not a snowflake")
		}
	}
	return s, nil
}

// Args holds the values bound to a matched command's slots. Optional slots
// that received no token are absent.
type Args struct {
	values map[string]any
	raw    map[string][]string
}

// Has reports whether the slot received a value.
func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Lookup returns the coerced value of a slot. Variadic slots hold []any.
func (a Args) Lookup(name string) (any, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Len returns the number of slots that received a value.
func (a Args) Len() int { return len(a.values) }

// Text returns the raw tokens of a slot joined by single spaces, or "".
func (a Args) Text(name string) string {
	return strings.Join(a.raw[name], " ")
}

// List returns a copy of the raw tokens of a slot.
func (a Args) List(name string) []string {
	return append([]string(nil), a.raw[name]...)
}

// Int returns an Int slot value, or 0.
func (a Args) Int(name string) int64 {
	n, _ := a.values[name].(int64)
	return n
}

// Bool returns a Bool slot value, or false.
func (a Args) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

// ID returns an ID slot value, or "".
func (a Args) ID(name string) string {
	s, _ := a.values[name].(string)
	return s
}

// NewArgs builds Args from already coerced values. It is meant for tests of
// handlers that bypass matching.
func NewArgs(values map[string]any) Args {
	args := Args{values: map[string]any{}, raw: map[string][]string{}}
	for k, v := range values {
		args.values[k] = v
		switch x := v.(type) {
		case []string:
			args.raw[k] = append([]string(nil), x...)
		default:
			args.raw[k] = []string{fmt.Sprint(v)}
		}
	}
	return args
}
