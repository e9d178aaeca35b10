package core

import "sort"

// TreeNode is one node of a global's tree. It holds an optional value and
// an ordered mapping of subscript to child node. A node with a null value
// and no children is empty; empty nodes are pruned and never reachable
// from a root.
type TreeNode struct {
	data     Value
	children map[Subscript]*TreeNode
}

// QueryResult is one (path, value) pair produced by Query
type QueryResult struct {
	Path  Path
	Value Value
}

// PathValue is one (path, value) pair produced by subtree traversal
type PathValue struct {
	Path  Path
	Value Value
}

// NewTreeNode creates an empty node
func NewTreeNode() *TreeNode {
	return &TreeNode{children: make(map[Subscript]*TreeNode)}
}

// Data returns the node's value
func (n *TreeNode) Data() Value { return n.data }

// SetData sets the node's value directly. Used by snapshot restore.
func (n *TreeNode) SetData(v Value) { n.data = v }

// Child returns the child for the given subscript, or nil
func (n *TreeNode) Child(s Subscript) *TreeNode {
	return n.children[s]
}

// PutChild attaches a child node under the given subscript, replacing any
// existing edge. Used by snapshot restore.
func (n *TreeNode) PutChild(s Subscript, child *TreeNode) {
	n.children[s] = child
}

// IsEmpty reports whether the node carries no value and has no children
func (n *TreeNode) IsEmpty() bool {
	return n.data.IsNull() && len(n.children) == 0
}

// IsLeaf reports whether the node has no children
func (n *TreeNode) IsLeaf() bool {
	return len(n.children) == 0
}

// ChildSubscripts returns the direct child subscripts in sorted order
func (n *TreeNode) ChildSubscripts() []Subscript {
	out := make([]Subscript, 0, len(n.children))
	for s := range n.children {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Compare(out[j]) < 0
	})
	return out
}

// Set walks the path, creating intermediate nodes as needed, and writes
// the value at the terminal node.
func (n *TreeNode) Set(path Path, v Value) {
	node := n
	for _, s := range path {
		child, ok := node.children[s]
		if !ok {
			child = NewTreeNode()
			node.children[s] = child
		}
		node = child
	}
	node.data = v
}

// Get returns the value at the terminal node of the path, or Null when any
// edge is missing.
func (n *TreeNode) Get(path Path) Value {
	node := n
	for _, s := range path {
		child, ok := node.children[s]
		if !ok {
			return Null
		}
		node = child
	}
	return node.data
}

// Locate returns the node addressed by the path, or nil
func (n *TreeNode) Locate(path Path) *TreeNode {
	node := n
	for _, s := range path {
		child, ok := node.children[s]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// Remove clears the value and drops every descendant of the terminal node
// of the path, then prunes child edges whose subtree became empty,
// bottom-up. It returns whether this node itself became empty; the caller
// uses that to prune upward.
func (n *TreeNode) Remove(path Path) bool {
	if len(path) == 0 {
		n.data = Null
		n.children = make(map[Subscript]*TreeNode)
		return true
	}

	s := path[0]
	child, ok := n.children[s]
	if !ok {
		return n.IsEmpty()
	}

	if child.Remove(path[1:]) {
		delete(n.children, s)
	}
	return n.IsEmpty()
}

// Query descends along the path; if the terminal node is found it emits
// the terminal's value (when non-null) and then every non-null value up to
// depth further levels below, each with its full subscript path below the
// query point.
func (n *TreeNode) Query(path Path, depth int) []QueryResult {
	node := n.Locate(path)
	if node == nil {
		return nil
	}
	var results []QueryResult
	node.collect(nil, depth, &results)
	return results
}

func (n *TreeNode) collect(prefix Path, depth int, results *[]QueryResult) {
	if !n.data.IsNull() {
		*results = append(*results, QueryResult{Path: prefix.Clone(), Value: n.data})
	}
	if depth <= 0 {
		return
	}
	for _, s := range n.ChildSubscripts() {
		n.children[s].collect(append(prefix, s), depth-1, results)
	}
}

// CountNodes returns the number of nodes carrying a non-null value in this
// subtree.
func (n *TreeNode) CountNodes() int {
	count := 0
	if !n.data.IsNull() {
		count = 1
	}
	for _, child := range n.children {
		count += child.CountNodes()
	}
	return count
}

// AllPaths returns every (path, value) pair with a non-null value in this
// subtree, in subscript order.
func (n *TreeNode) AllPaths() []PathValue {
	var out []PathValue
	n.walk(nil, &out)
	return out
}

func (n *TreeNode) walk(prefix Path, out *[]PathValue) {
	if !n.data.IsNull() {
		*out = append(*out, PathValue{Path: prefix.Clone(), Value: n.data})
	}
	for _, s := range n.ChildSubscripts() {
		n.children[s].walk(append(prefix, s), out)
	}
}

// FindValues returns every (path, value) pair in the subtree whose value's
// textual form equals the given text, in subscript order.
func (n *TreeNode) FindValues(text string) []PathValue {
	var out []PathValue
	n.findValues(nil, text, &out)
	return out
}

func (n *TreeNode) findValues(prefix Path, text string, out *[]PathValue) {
	if !n.data.IsNull() && n.data.Text() == text {
		*out = append(*out, PathValue{Path: prefix.Clone(), Value: n.data})
	}
	for _, s := range n.ChildSubscripts() {
		n.children[s].findValues(append(prefix, s), text, out)
	}
}

// DeepCopy returns a structural clone of the subtree
func (n *TreeNode) DeepCopy() *TreeNode {
	copied := NewTreeNode()
	copied.data = n.data
	for s, child := range n.children {
		copied.children[s] = child.DeepCopy()
	}
	return copied
}
