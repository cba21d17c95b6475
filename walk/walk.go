// Package walk implements a post-order traversal over an IPLD data model
// tree. It is the substrate the extractor and inliner packages are built
// on: both rebuild a tree from a sequence of post-order nodes, and the
// extractor recognises inline delimiters along the way.
package walk

import (
	"fmt"
	"sort"

	"github.com/ipld/go-ipld-prime/datamodel"
)

// Walker produces nodes of a datamodel.Node tree in post-order:
// every child is yielded before its parent, siblings left-to-right (list
// order, or byte-lexicographic key order for maps).
//
// Walker is not safe for concurrent use and can only be drained once.
type Walker struct {
	inbound  []datamodel.Node
	outbound []datamodel.Node
}

// New starts a Walker rooted at root.
func New(root datamodel.Node) *Walker {
	return &Walker{inbound: []datamodel.Node{root}}
}

// Next returns the next node in post-order, or ok=false once the walk is
// exhausted. It never fails on a well-formed datamodel.Node tree; the error
// return exists only to surface a malformed map/list iterator from the
// underlying implementation.
func (w *Walker) Next() (n datamodel.Node, ok bool, err error) {
	for {
		last := len(w.inbound) - 1
		if last < 0 {
			if len(w.outbound) == 0 {
				return nil, false, nil
			}
			return w.popOutbound(), true, nil
		}

		node := w.inbound[last]
		w.inbound = w.inbound[:last]

		switch node.Kind() {
		case datamodel.Kind_Map:
			children, err := sortedMapValues(node)
			if err != nil {
				return nil, false, err
			}
			w.outbound = append(w.outbound, node)
			w.inbound = append(w.inbound, children...)

		case datamodel.Kind_List:
			children, err := listValues(node)
			if err != nil {
				return nil, false, err
			}
			w.outbound = append(w.outbound, node)
			w.inbound = append(w.inbound, children...)

		default:
			w.outbound = append(w.outbound, node)
		}
	}
}

func (w *Walker) popOutbound() datamodel.Node {
	last := len(w.outbound) - 1
	n := w.outbound[last]
	w.outbound = w.outbound[:last]
	return n
}

// sortedMapValues returns a map node's values ordered by the
// byte-lexicographic order of their keys (spec: every Map iteration is
// deterministic, keyed on UTF-8 byte order), regardless of the iteration
// order the underlying node implementation happens to use.
func sortedMapValues(n datamodel.Node) ([]datamodel.Node, error) {
	type entry struct {
		key   string
		value datamodel.Node
	}
	entries := make([]entry, 0, n.Length())
	mi := n.MapIterator()
	for !mi.Done() {
		k, v, err := mi.Next()
		if err != nil {
			return nil, fmt.Errorf("walk: map iteration failed: %w", err)
		}
		ks, err := k.AsString()
		if err != nil {
			return nil, fmt.Errorf("walk: non-string map key: %w", err)
		}
		entries = append(entries, entry{ks, v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	values := make([]datamodel.Node, len(entries))
	for i, e := range entries {
		values[i] = e.value
	}
	return values, nil
}

func listValues(n datamodel.Node) ([]datamodel.Node, error) {
	values := make([]datamodel.Node, 0, n.Length())
	li := n.ListIterator()
	for !li.Done() {
		_, v, err := li.Next()
		if err != nil {
			return nil, fmt.Errorf("walk: list iteration failed: %w", err)
		}
		values = append(values, v)
	}
	return values, nil
}

// SortedMapKeys returns a map node's keys in the same byte-lexicographic
// order the walk uses to push the map's values. Extractor and inliner use
// this to rebuild a map node from the values popped off their rebuild
// stack, which are popped in that same key order.
func SortedMapKeys(n datamodel.Node) ([]string, error) {
	keys := make([]string, 0, n.Length())
	mi := n.MapIterator()
	for !mi.Done() {
		k, _, err := mi.Next()
		if err != nil {
			return nil, fmt.Errorf("walk: map iteration failed: %w", err)
		}
		ks, err := k.AsString()
		if err != nil {
			return nil, fmt.Errorf("walk: non-string map key: %w", err)
		}
		keys = append(keys, ks)
	}
	sort.Strings(keys)
	return keys, nil
}

// Peekable wraps a Walker with a one-item lookahead buffer, needed by the
// extractor to recognise that the node it just rebuilt is about to be
// followed by its enclosing delimiter wrapper.
type Peekable struct {
	w      *Walker
	peeked *datamodel.Node
	done   bool
	err    error
}

// NewPeekable starts a peekable post-order walk rooted at root.
func NewPeekable(root datamodel.Node) *Peekable {
	return &Peekable{w: New(root)}
}

// Next advances the walk, returning ok=false once exhausted.
func (p *Peekable) Next() (datamodel.Node, bool, error) {
	if p.peeked != nil {
		n := *p.peeked
		p.peeked = nil
		return n, true, nil
	}
	if p.done {
		return nil, false, p.err
	}
	n, ok, err := p.w.Next()
	if err != nil {
		p.done = true
		p.err = err
		return nil, false, err
	}
	if !ok {
		p.done = true
	}
	return n, ok, nil
}

// Peek returns the next node without consuming it.
func (p *Peekable) Peek() (datamodel.Node, bool, error) {
	if p.peeked != nil {
		return *p.peeked, true, nil
	}
	if p.done {
		return nil, false, p.err
	}
	n, ok, err := p.w.Next()
	if err != nil {
		p.done = true
		p.err = err
		return nil, false, err
	}
	if !ok {
		p.done = true
		return nil, false, nil
	}
	p.peeked = &n
	return n, true, nil
}

// IsDelimiterNext reports whether the next node the walk will yield is a
// Map with exactly one key, "/". It does not by itself confirm the shape
// is a valid delimiter (see the delimiter package); it only tells the
// caller that the "data" (and optional "link") values just rebuilt are
// about to be followed by their wrapper.
func (p *Peekable) IsDelimiterNext() bool {
	n, ok, err := p.Peek()
	if err != nil || !ok {
		return false
	}
	if n.Kind() != datamodel.Kind_Map {
		return false
	}
	if n.Length() != 1 {
		return false
	}
	mi := n.MapIterator()
	k, _, err := mi.Next()
	if err != nil {
		return false
	}
	ks, err := k.AsString()
	if err != nil {
		return false
	}
	return ks == "/"
}
