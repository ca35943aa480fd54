package template

import (
	"github.com/conneroisu/tplc/internal/errors"
)

// RootType is the type of the synthetic tree root.
const RootType = "page"

// Node is a tag in the token tree. Nodes reference each other by index into
// Tree.Nodes.
type Node struct {
	Token Token
	// TokenIndex is the position of Token in the tokenized sequence, -1 for the root.
	TokenIndex int
	Parent     int
	Children   []int
	// Close indexes the matching end tag of a capturing node, -1 otherwise.
	Close int
}

// Type returns the tag type, RootType for the root.
func (n *Node) Type() string {
	if n.TokenIndex < 0 {
		return RootType
	}
	return n.Token.Type
}

// Tree is the nesting of tags in one page. Node 0 is the root.
type Tree struct {
	Nodes []Node
}

// Root returns the synthetic page node.
func (t *Tree) Root() *Node {
	return &t.Nodes[0]
}

// Walk visits every node below the root in pre-order, which is document
// order of the opening tags. depth is 1 for children of the root.
func (t *Tree) Walk(fn func(id, depth int) error) error {
	var visit func(id, depth int) error
	visit = func(id, depth int) error {
		for _, child := range t.Nodes[id].Children {
			if err := fn(child, depth); err != nil {
				return err
			}
			if err := visit(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(0, 1)
}

// BuildTree nests tokens under the capturing tags that enclose them. An end
// tag closes the innermost open block; non-capturing tags are leaves whether
// or not they carry the end keyword.
func BuildTree(page string, tokens []Token, capturing func(typ string) bool) (*Tree, error) {
	tree := &Tree{Nodes: make([]Node, 1, len(tokens)+1)}
	tree.Nodes[0] = Node{TokenIndex: -1, Parent: -1, Close: -1}

	stack := []int{0}
	for i, tok := range tokens {
		current := stack[len(stack)-1]

		if !capturing(tok.Type) {
			tree.add(current, i, tok)
			continue
		}

		if tok.Closing {
			if len(stack) == 1 {
				return nil, errors.UnbalancedBlock(tok.Type).WithLocation(page, tok.Line)
			}
			tree.Nodes[current].Close = i
			stack = stack[:len(stack)-1]
			continue
		}

		stack = append(stack, tree.add(current, i, tok))
	}

	if len(stack) > 1 {
		open := tree.Nodes[stack[len(stack)-1]].Token
		return nil, errors.UnclosedBlock(open.Type).WithLocation(page, open.Line)
	}

	return tree, nil
}

func (t *Tree) add(parent, index int, tok Token) int {
	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{
		Token:      tok,
		TokenIndex: index,
		Parent:     parent,
		Close:      -1,
	})
	t.Nodes[parent].Children = append(t.Nodes[parent].Children, id)
	return id
}
