// Package extractor implements the Extractor (spec §4.4): a post-order
// rewrite of an inlined document into a sequence of (BlockId, Node) pairs,
// children before parents, with the root always emitted last.
package extractor

import (
	"fmt"

	"github.com/expede/ipld-inline/blockid"
	"github.com/expede/ipld-inline/codec"
	"github.com/expede/ipld-inline/digest"
	"github.com/expede/ipld-inline/walk"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// Pair is one extracted block: the content address it was stored (or would
// be stored) under, and the node it addresses.
type Pair struct {
	Id   cid.Cid
	Node datamodel.Node
}

// Extractor walks an inlined document and, for each recognized delimiter,
// splits its "data" payload out as its own block -- replacing it in the
// parent with a bare Link -- while reconstructing everything else as-is.
type Extractor struct {
	it      *walk.Peekable
	stack   []datamodel.Node
	codec   codec.Codec
	digest  digest.Digest
	version int
	strict  bool
}

// New creates an Extractor over root. codec/digest/version are the
// IdService configuration used for the inherit form, where no explicit
// link is given (spec §4.2, §4.4).
func New(root datamodel.Node, c codec.Codec, d digest.Digest, version int) *Extractor {
	return &Extractor{
		it:      walk.NewPeekable(root),
		codec:   c,
		digest:  d,
		version: version,
	}
}

// WithStrict enables strict mode (spec §9): an explicit "link" value is
// verified against the recomputed id of "data" rather than trusted as
// given. A mismatch is reported as an error from Next rather than silently
// accepted.
func (e *Extractor) WithStrict(strict bool) *Extractor {
	e.strict = strict
	return e
}

func (e *Extractor) compute(n datamodel.Node) (cid.Cid, error) {
	return blockid.Compute(n, e.codec, e.digest, e.version)
}

// Next returns the next extracted pair. ok is false once the document has
// been fully consumed; the final pair returned before that is always the
// root.
func (e *Extractor) Next() (Pair, bool, error) {
	for {
		n, ok, err := e.it.Next()
		if err != nil {
			return Pair{}, false, err
		}
		if !ok {
			if len(e.stack) == 0 {
				return Pair{}, false, nil
			}
			root := pop1(&e.stack)
			id, err := e.compute(root)
			if err != nil {
				return Pair{}, false, err
			}
			return Pair{Id: id, Node: root}, true, nil
		}

		switch n.Kind() {
		case datamodel.Kind_List:
			children := popN(&e.stack, int(n.Length()))
			rebuilt, err := buildList(children)
			if err != nil {
				return Pair{}, false, err
			}
			e.stack = append(e.stack, rebuilt)

		case datamodel.Kind_Map:
			pair, handled, err := e.handleDelimiterCandidate(n)
			if err != nil {
				return Pair{}, false, err
			}
			if handled {
				return pair, true, nil
			}

			keys, err := walk.SortedMapKeys(n)
			if err != nil {
				return Pair{}, false, err
			}
			values := popN(&e.stack, len(keys))
			rebuilt, err := buildMap(keys, values)
			if err != nil {
				return Pair{}, false, err
			}
			e.stack = append(e.stack, rebuilt)

		default:
			e.stack = append(e.stack, n)
		}
	}
}

// handleDelimiterCandidate checks whether n is the inline wrapper's inner
// map (keyed "data"[, "link"]) sitting directly beneath a confirmed
// delimiter -- the next raw node the walker would hand back -- and if so,
// performs the split: pop the already-rebuilt children, compute or read
// the block id, splice a Link onto the rebuild stack, and hand back the
// extracted pair.
func (e *Extractor) handleDelimiterCandidate(n datamodel.Node) (Pair, bool, error) {
	shape, err := inspectMapShape(n)
	if err != nil {
		return Pair{}, false, err
	}
	if !shape.hasData || (shape.length != 1 && shape.length != 2) {
		return Pair{}, false, nil
	}
	if !e.it.IsDelimiterNext() {
		return Pair{}, false, nil
	}

	if shape.length == 1 {
		e.it.Next() // consume the confirmed delimiter wrapper

		node := pop1(&e.stack)
		id, err := e.compute(node)
		if err != nil {
			return Pair{}, false, err
		}
		e.stack = append(e.stack, linkNode(id))
		return Pair{Id: id, Node: node}, true, nil
	}

	// shape.length == 2: explicit form, only recognized if "link" really
	// is a Link -- otherwise this falls through to the generic map
	// rebuild below, same as any other two-key map.
	if !shape.linkIsLink {
		return Pair{}, false, nil
	}

	e.it.Next() // consume the confirmed delimiter wrapper

	linkVal := pop1(&e.stack)
	node := pop1(&e.stack)

	l, err := linkVal.AsLink()
	if err != nil {
		return Pair{}, false, fmt.Errorf("extractor: expected link on rebuild stack: %w", err)
	}
	cl, ok := l.(cidlink.Link)
	if !ok {
		return Pair{}, false, fmt.Errorf("extractor: non-CID link on rebuild stack")
	}
	id := cl.Cid

	if e.strict {
		recomputed, err := e.compute(node)
		if err != nil {
			return Pair{}, false, err
		}
		if !recomputed.Equals(id) {
			return Pair{}, false, fmt.Errorf("extractor: strict mode: declared link %s does not match recomputed id %s", id, recomputed)
		}
	}

	e.stack = append(e.stack, linkVal)
	return Pair{Id: id, Node: node}, true, nil
}

// All drains e to completion and returns every pair in emission order
// (children before parents, root last). It's a convenience for callers
// that don't need to stream.
func All(root datamodel.Node, c codec.Codec, d digest.Digest, version int) ([]Pair, error) {
	e := New(root, c, d, version)
	var out []Pair
	for {
		p, ok, err := e.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, p)
	}
}

type mapShape struct {
	hasData    bool
	length     int64
	linkIsLink bool
}

func inspectMapShape(n datamodel.Node) (mapShape, error) {
	var shape mapShape
	shape.length = n.Length()

	mi := n.MapIterator()
	for !mi.Done() {
		k, v, err := mi.Next()
		if err != nil {
			return shape, fmt.Errorf("extractor: iterating map: %w", err)
		}
		ks, err := k.AsString()
		if err != nil {
			return shape, fmt.Errorf("extractor: non-string map key: %w", err)
		}
		switch ks {
		case "data":
			shape.hasData = true
		case "link":
			shape.linkIsLink = v.Kind() == datamodel.Kind_Link
		}
	}
	return shape, nil
}

func pop1(stack *[]datamodel.Node) datamodel.Node {
	s := *stack
	v := s[len(s)-1]
	*stack = s[:len(s)-1]
	return v
}

// popN removes and returns the last n elements of *stack, preserving their
// relative (original push) order.
func popN(stack *[]datamodel.Node, n int) []datamodel.Node {
	s := *stack
	out := append([]datamodel.Node(nil), s[len(s)-n:]...)
	*stack = s[:len(s)-n]
	return out
}

func linkNode(id cid.Cid) datamodel.Node {
	nb := basicnode.Prototype.Any.NewBuilder()
	_ = nb.AssignLink(cidlink.Link{Cid: id})
	return nb.Build()
}

func buildList(items []datamodel.Node) (datamodel.Node, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	la, err := nb.BeginList(int64(len(items)))
	if err != nil {
		return nil, fmt.Errorf("extractor: begin list: %w", err)
	}
	for _, it := range items {
		if err := la.AssembleValue().AssignNode(it); err != nil {
			return nil, fmt.Errorf("extractor: assign list value: %w", err)
		}
	}
	if err := la.Finish(); err != nil {
		return nil, fmt.Errorf("extractor: finish list: %w", err)
	}
	return nb.Build(), nil
}

func buildMap(keys []string, values []datamodel.Node) (datamodel.Node, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	ma, err := nb.BeginMap(int64(len(keys)))
	if err != nil {
		return nil, fmt.Errorf("extractor: begin map: %w", err)
	}
	for i, k := range keys {
		if err := ma.AssembleKey().AssignString(k); err != nil {
			return nil, fmt.Errorf("extractor: assign map key: %w", err)
		}
		if err := ma.AssembleValue().AssignNode(values[i]); err != nil {
			return nil, fmt.Errorf("extractor: assign map value: %w", err)
		}
	}
	if err := ma.Finish(); err != nil {
		return nil, fmt.Errorf("extractor: finish map: %w", err)
	}
	return nb.Build(), nil
}
