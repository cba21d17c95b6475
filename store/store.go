// Package store defines the content-addressed Store collaborator (spec
// §6.1) the Inliner reads from and the Extractor writes through, plus a
// simple in-memory implementation used by tests and small tools.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/expede/ipld-inline/blockid"
	"github.com/expede/ipld-inline/codec"
	"github.com/expede/ipld-inline/digest"
	"github.com/expede/ipld-inline/extractor"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
)

// ErrBlockNotFound is returned by Get when cid isn't present.
var ErrBlockNotFound = errors.New("store: block not found")

// Store is a content-addressed block store over datamodel.Node (spec §6.1).
type Store interface {
	// Get retrieves a node by its BlockId.
	Get(id cid.Cid) (datamodel.Node, error)
	// PutKeyed inserts a node under a caller-supplied BlockId, trusting
	// the caller that the id is correct (spec §6.1 -- the easier half of
	// the trait to implement; Put computes the id from n instead).
	PutKeyed(id cid.Cid, n datamodel.Node) error
}

// Put computes n's id under c/d/version and stores it, the way every
// caller should prefer over PutKeyed when it actually has the Codec and
// Digest on hand.
func Put(s Store, n datamodel.Node, c codec.Codec, d digest.Digest, version int) (cid.Cid, error) {
	id, err := blockid.Compute(n, c, d, version)
	if err != nil {
		return cid.Undef, err
	}
	if err := s.PutKeyed(id, n); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// GetRaw retrieves a node by id and re-encodes it under the codec named by
// the id's own multicodec tag (spec §6.1).
func GetRaw(s Store, id cid.Cid) ([]byte, error) {
	n, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	c, err := codec.ByTag(id.Type())
	if err != nil {
		return nil, fmt.Errorf("store: get_raw: %w", err)
	}
	return c.Encode(n)
}

// Extract runs the Extractor over root and writes every resulting block
// into s, returning the root's own id last (spec §6.1).
func Extract(s Store, root datamodel.Node, c codec.Codec, d digest.Digest, version int) (cid.Cid, error) {
	pairs, err := extractor.All(root, c, d, version)
	if err != nil {
		return cid.Undef, err
	}
	var rootID cid.Cid
	for _, p := range pairs {
		if err := s.PutKeyed(p.Id, p.Node); err != nil {
			return cid.Undef, fmt.Errorf("store: extract: storing %s: %w", p.Id, err)
		}
		rootID = p.Id
	}
	return rootID, nil
}

// MemStore is a trivial in-memory Store, the Go analogue of the
// BTreeMap<Cid, Ipld> the original trait's own doctests use directly as a
// Store.
type MemStore struct {
	mu     sync.RWMutex
	blocks map[cid.Cid]datamodel.Node
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{blocks: make(map[cid.Cid]datamodel.Node)}
}

func (m *MemStore) Get(id cid.Cid) (datamodel.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.blocks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	return n, nil
}

func (m *MemStore) PutKeyed(id cid.Cid, n datamodel.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[id] = n
	return nil
}

// Len reports how many blocks m currently holds.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}
