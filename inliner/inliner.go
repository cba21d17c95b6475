// Package inliner implements the Inliner (spec §4.5): the inverse of the
// Extractor. It walks a plain (all-Link) document and replaces Link leaves
// it can resolve against a Store with inline delimiter wrappers, pausing
// on a miss exactly as far as its chosen Policy allows.
package inliner

import (
	"errors"
	"fmt"

	"github.com/expede/ipld-inline/delimiter"
	"github.com/expede/ipld-inline/store"
	"github.com/expede/ipld-inline/walk"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// Policy governs what an Inliner does when it meets a Link its Store
// doesn't have (spec §4.5.1).
type Policy int

const (
	// Naive leaves an unresolved Link exactly as it found it and keeps
	// going -- best effort, never suspends, never deduplicates.
	Naive Policy = iota
	// AtLeastOnce suspends on every unresolved Link, including one it has
	// already inlined elsewhere in the document (no deduplication; a
	// shared subgraph is inlined once per occurrence).
	AtLeastOnce
	// AtMostOnce suspends only the first time a given Cid is met; later
	// occurrences of the same Cid are re-emitted as a bare Link without
	// asking the Store (or the caller) again.
	AtMostOnce
)

// ErrEmptyDocument is returned by Run if the walked document produced no
// nodes at all, which should only happen for a malformed/empty iterator.
var ErrEmptyDocument = errors.New("inliner: empty document")

// Inliner holds the paused state of an in-progress inlining pass: the
// post-order walker and the partially rebuilt stack. Both persist across a
// Stuck suspend/resume cycle -- Run never restarts the walk, it only
// resumes it.
type Inliner struct {
	w      *walk.Walker
	stack  []datamodel.Node
	policy Policy
	seen   map[cid.Cid]struct{}
}

// New creates an Inliner over root using the given Policy.
func New(root datamodel.Node, policy Policy) *Inliner {
	in := &Inliner{w: walk.New(root), policy: policy}
	if policy == AtMostOnce {
		in.seen = make(map[cid.Cid]struct{})
	}
	return in
}

// Stuck is returned by Run when the Inliner's Policy requires a Store miss
// to suspend processing rather than skip past it. The caller decides how
// to proceed (spec §4.5.1): Resolve, Stub, or Ignore.
type Stuck struct {
	inliner *Inliner
	needs   cid.Cid
}

// Needs is the BlockId the paused Inliner requires to continue.
func (s *Stuck) Needs() cid.Cid { return s.needs }

// Resolve supplies data for Needs(), writes it into st under that id, and
// splices the usual inline wrapper into the rebuild -- as if the Store had
// had it all along. Call Run again afterwards to resume.
func (s *Stuck) Resolve(data datamodel.Node, st store.Store) error {
	if err := st.PutKeyed(s.needs, data); err != nil {
		return fmt.Errorf("inliner: resolve: storing %s: %w", s.needs, err)
	}
	return s.Stub(data)
}

// Stub splices the inline wrapper for data in place of the stuck Link,
// without writing data to any Store. Call Run again afterwards to resume.
func (s *Stuck) Stub(data datamodel.Node) error {
	id := s.needs
	l := datamodel.Link(cidlink.Link{Cid: id})
	wrapped, err := delimiter.Wrap(data, &l)
	if err != nil {
		return fmt.Errorf("inliner: stub: %w", err)
	}
	if s.inliner.policy == AtMostOnce {
		s.inliner.seen[id] = struct{}{}
	}
	s.inliner.stack = append(s.inliner.stack, wrapped)
	return nil
}

// Ignore leaves the stuck BlockId as a bare Link and resumes normal
// operation. Call Run again afterwards to resume.
func (s *Stuck) Ignore() {
	if s.inliner.policy == AtMostOnce {
		s.inliner.seen[s.needs] = struct{}{}
	}
	s.inliner.stack = append(s.inliner.stack, linkNode(s.needs))
}

// Run drives the Inliner until it finishes (returning the fully inlined
// document), gets stuck (returning a Stuck the caller must resolve), or
// hits a hard error unrelated to the Policy (a malformed document).
func (in *Inliner) Run(st store.Store) (datamodel.Node, *Stuck, error) {
	for {
		n, ok, err := in.w.Next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			if len(in.stack) == 0 {
				return nil, nil, ErrEmptyDocument
			}
			return pop1(&in.stack), nil, nil
		}

		switch n.Kind() {
		case datamodel.Kind_Link:
			handled, err := in.handleLink(n, st)
			if err != nil {
				return nil, nil, err
			}
			if handled != nil {
				return nil, handled, nil
			}

		case datamodel.Kind_List:
			children := popN(&in.stack, int(n.Length()))
			rebuilt, err := buildList(children)
			if err != nil {
				return nil, nil, err
			}
			in.stack = append(in.stack, rebuilt)

		case datamodel.Kind_Map:
			keys, err := walk.SortedMapKeys(n)
			if err != nil {
				return nil, nil, err
			}
			values := popN(&in.stack, len(keys))
			rebuilt, err := buildMap(keys, values)
			if err != nil {
				return nil, nil, err
			}
			in.stack = append(in.stack, rebuilt)

		default:
			in.stack = append(in.stack, n)
		}
	}
}

// handleLink resolves (or defers on) a single Link leaf. It returns a
// non-nil *Stuck when the caller must intervene before Run can continue.
func (in *Inliner) handleLink(n datamodel.Node, st store.Store) (*Stuck, error) {
	l, err := n.AsLink()
	if err != nil {
		return nil, fmt.Errorf("inliner: reading link: %w", err)
	}
	cl, ok := l.(cidlink.Link)
	if !ok {
		return nil, fmt.Errorf("inliner: non-CID link encountered")
	}
	id := cl.Cid

	if in.policy == AtMostOnce {
		if _, dup := in.seen[id]; dup {
			in.stack = append(in.stack, n)
			return nil, nil
		}
	}

	data, err := st.Get(id)
	if err != nil {
		if in.policy == Naive {
			in.stack = append(in.stack, n)
			return nil, nil
		}
		return &Stuck{inliner: in, needs: id}, nil
	}

	if in.policy == AtMostOnce {
		in.seen[id] = struct{}{}
	}

	link := datamodel.Link(cl)
	wrapped, err := delimiter.Wrap(data, &link)
	if err != nil {
		return nil, fmt.Errorf("inliner: wrapping resolved link: %w", err)
	}
	in.stack = append(in.stack, wrapped)
	return nil, nil
}

func pop1(stack *[]datamodel.Node) datamodel.Node {
	s := *stack
	v := s[len(s)-1]
	*stack = s[:len(s)-1]
	return v
}

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
		return nil, fmt.Errorf("inliner: begin list: %w", err)
	}
	for _, it := range items {
		if err := la.AssembleValue().AssignNode(it); err != nil {
			return nil, fmt.Errorf("inliner: assign list value: %w", err)
		}
	}
	if err := la.Finish(); err != nil {
		return nil, fmt.Errorf("inliner: finish list: %w", err)
	}
	return nb.Build(), nil
}

func buildMap(keys []string, values []datamodel.Node) (datamodel.Node, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	ma, err := nb.BeginMap(int64(len(keys)))
	if err != nil {
		return nil, fmt.Errorf("inliner: begin map: %w", err)
	}
	for i, k := range keys {
		if err := ma.AssembleKey().AssignString(k); err != nil {
			return nil, fmt.Errorf("inliner: assign map key: %w", err)
		}
		if err := ma.AssembleValue().AssignNode(values[i]); err != nil {
			return nil, fmt.Errorf("inliner: assign map value: %w", err)
		}
	}
	if err := ma.Finish(); err != nil {
		return nil, fmt.Errorf("inliner: finish map: %w", err)
	}
	return nb.Build(), nil
}
