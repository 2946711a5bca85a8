package cmd

import (
	"strings"
)

// NodeID is the stable index of a node inside a Tree.
type NodeID int

// Root designates the set of root nodes when used as a match start.
const Root NodeID = -1

// Node is a group or command declaration. It is implemented by *Group and
// *Command only.
type Node interface {
	nodeName() string
}

// Group declares an interior node that namespaces child groups and commands.
type Group struct {
	Name string
	// Role required to enter the group. Empty means no requirement.
	Role string
	Help string
	// Default names a child command resolved when the tokens run out at this
	// group. Empty means running out of tokens is not a match.
	Default  string
	Children []Node
}

// Command declares an invocable leaf.
type Command struct {
	Name string
	// Role required to run the command. Empty means no requirement.
	Role string
	Help string
	Args []Arg
}

func (g *Group) nodeName() string   { return g.Name }
func (c *Command) nodeName() string { return c.Name }

type node struct {
	group    bool
	name     string
	role     string
	help     string
	parent   NodeID
	path     []string
	children []NodeID
	index    map[string]NodeID
	args     []Arg
	def      NodeID
}

// Tree is an immutable arena of groups and commands. Nodes reference each
// other by NodeID, never by pointer. A changed command surface is expressed
// by building a new Tree.
type Tree struct {
	nodes []node
	roots []NodeID
	index map[string]NodeID
}

// NewTree validates the declarations and builds a Tree. Any malformed
// declaration is reported as a *ConfigError.
func NewTree(roots ...Node) (*Tree, error) {
	t := &Tree{index: make(map[string]NodeID)}
	for _, n := range roots {
		id, err := t.add(Root, nil, n)
		if err != nil {
			return nil, err
		}
		if err := t.link(t.index, nil, id); err != nil {
			return nil, err
		}
		t.roots = append(t.roots, id)
	}
	return t, nil
}

func (t *Tree) add(parent NodeID, parentPath []string, decl Node) (NodeID, error) {
	if decl == nil {
		return 0, &ConfigError{Path: strings.Join(parentPath, " "), Reason: "nil node"}
	}
	name := strings.TrimSpace(decl.nodeName())
	path := append(append([]string(nil), parentPath...), name)
	if name == "" || strings.ContainsFunc(name, isSpace) {
		return 0, &ConfigError{Path: strings.Join(path, " "), Reason: "node name must be a single non-empty word"}
	}

	id := NodeID(len(t.nodes))
	switch d := decl.(type) {
	case *Command:
		if err := checkSlots(path, d.Args); err != nil {
			return 0, err
		}
		t.nodes = append(t.nodes, node{
			name:   name,
			role:   d.Role,
			help:   d.Help,
			parent: parent,
			path:   path,
			args:   append([]Arg(nil), d.Args...),
			def:    Root,
		})
	case *Group:
		t.nodes = append(t.nodes, node{
			group:  true,
			name:   name,
			role:   d.Role,
			help:   d.Help,
			parent: parent,
			path:   path,
			index:  make(map[string]NodeID),
			def:    Root,
		})
		for _, child := range d.Children {
			cid, err := t.add(id, path, child)
			if err != nil {
				return 0, err
			}
			if err := t.link(t.nodes[id].index, path, cid); err != nil {
				return 0, err
			}
			t.nodes[id].children = append(t.nodes[id].children, cid)
		}
		if d.Default != "" {
			def, ok := t.nodes[id].index[strings.ToLower(d.Default)]
			if !ok || t.nodes[def].group {
				return 0, &ConfigError{Path: strings.Join(path, " "), Reason: "default " + d.Default + " is not a child command"}
			}
			t.nodes[id].def = def
		}
	default:
		return 0, &ConfigError{Path: strings.Join(path, " "), Reason: "unsupported node type"}
	}
	return id, nil
}

// link records id in a sibling index, rejecting duplicate names. Groups and
// commands share one namespace per level.
func (t *Tree) link(index map[string]NodeID, parentPath []string, id NodeID) error {
	key := strings.ToLower(t.nodes[id].name)
	if prev, dup := index[key]; dup {
		reason := "duplicate name " + t.nodes[id].name
		if t.nodes[prev].group != t.nodes[id].group {
			reason = "group and command share the name " + t.nodes[id].name
		}
		return &ConfigError{Path: strings.Join(parentPath, " "), Reason: reason}
	}
	index[key] = id
	return nil
}

func checkSlots(path []string, args []Arg) error {
	seen := make(map[string]bool, len(args))
	optional := false
	for i, a := range args {
		where := strings.Join(path, " ")
		switch {
		case a.Name == "":
			return &ConfigError{Path: where, Reason: "argument without a name"}
		case seen[a.Name]:
			return &ConfigError{Path: where, Reason: "duplicate argument " + a.Name}
		case a.Variadic && i != len(args)-1:
			return &ConfigError{Path: where, Reason: "variadic argument " + a.Name + " must be last"}
		case !a.Optional && optional:
			return &ConfigError{Path: where, Reason: "required argument " + a.Name + " follows an optional one"}
		}
		seen[a.Name] = true
		optional = optional || a.Optional
	}
	return nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// NodeInfo is a read-only view of a node.
type NodeInfo struct {
	ID       NodeID
	Name     string
	Role     string
	Help     string
	Group    bool
	Path     []string
	Args     []Arg
	Children []NodeID
}

// Usage renders the node path followed by its argument slots.
func (n NodeInfo) Usage() string {
	parts := append([]string(nil), n.Path...)
	for _, a := range n.Args {
		parts = append(parts, a.usage())
	}
	return strings.Join(parts, " ")
}

// Info returns a view of the node. ok is false for an unknown id.
func (t *Tree) Info(id NodeID) (NodeInfo, bool) {
	if id < 0 || int(id) >= len(t.nodes) {
		return NodeInfo{}, false
	}
	n := t.nodes[id]
	return NodeInfo{
		ID:       id,
		Name:     n.name,
		Role:     n.role,
		Help:     n.help,
		Group:    n.group,
		Path:     append([]string(nil), n.path...),
		Args:     append([]Arg(nil), n.args...),
		Children: append([]NodeID(nil), n.children...),
	}, true
}

// Roots returns the root nodes in declaration order.
func (t *Tree) Roots() []NodeID {
	return append([]NodeID(nil), t.roots...)
}

// Lookup resolves a path of names, ignoring roles and arguments.
func (t *Tree) Lookup(path ...string) (NodeID, bool) {
	index := t.index
	id := Root
	for _, name := range path {
		if index == nil {
			return Root, false
		}
		next, ok := index[strings.ToLower(name)]
		if !ok {
			return Root, false
		}
		id = next
		index = t.nodes[id].index
	}
	return id, id != Root
}

// Path returns the space-joined path of a node.
func (t *Tree) Path(id NodeID) string {
	if id < 0 || int(id) >= len(t.nodes) {
		return ""
	}
	return strings.Join(t.nodes[id].path, " ")
}

// Commands returns every command node in depth-first declaration order.
func (t *Tree) Commands() []NodeID {
	var out []NodeID
	t.Walk(func(n NodeInfo, _ int) {
		if !n.Group {
			out = append(out, n.ID)
		}
	})
	return out
}

// Walk visits every node depth-first in declaration order.
func (t *Tree) Walk(fn func(n NodeInfo, depth int)) {
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		info, _ := t.Info(id)
		fn(info, depth)
		for _, c := range t.nodes[id].children {
			visit(c, depth+1)
		}
	}
	for _, r := range t.roots {
		visit(r, 0)
	}
}

func (t *Tree) child(parent NodeID, name string) (NodeID, bool) {
	index := t.index
	if parent != Root {
		index = t.nodes[parent].index
	}
	id, ok := index[strings.ToLower(name)]
	return id, ok
}
