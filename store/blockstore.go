package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/expede/ipld-inline/codec"
	dstore "github.com/expede/ipld-inline/datastore"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/boxo/blockservice"
	bstor "github.com/ipfs/boxo/blockstore"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	carv2 "github.com/ipld/go-car/v2"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/linking"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/multicodec"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/ipld/go-ipld-prime/storage/bsrvadapter"
	selector "github.com/ipld/go-ipld-prime/traversal/selector"
	selb "github.com/ipld/go-ipld-prime/traversal/selector/builder"
)

// blockCacheSize bounds the in-process LRU layer in front of the badger-backed
// Datastore -- the same 1000-block cache the teacher's Blockstore carried.
const blockCacheSize = 1000

// Blockstore is a persistent Store (spec §6.1) over a badger-backed
// Datastore, with a bounded block cache and CAR import/export on top. Unlike
// MemStore, it survives a process restart.
type Blockstore struct {
	bstor.Blockstore
	lsys *linking.LinkSystem

	mu    sync.RWMutex
	cache *lru.Cache[string, blocks.Block]
}

var _ Store = (*Blockstore)(nil)

// NewBlockstore wraps ds with a bounded block cache and a LinkSystem usable
// by ExportCAR/ImportCAR. It registers the package's default codecs with
// go-ipld-prime's multicodec registry, the way every teacher cmd/* does in
// main() before touching a LinkSystem.
func NewBlockstore(ds dstore.Datastore) (*Blockstore, error) {
	codec.RegisterDefaults()

	cache, err := lru.New[string, blocks.Block](blockCacheSize)
	if err != nil {
		return nil, fmt.Errorf("store: building block cache: %w", err)
	}

	base := bstor.NewBlockstore(ds)
	bs := &Blockstore{Blockstore: base, cache: cache}

	// No exchange: this is a local, single-process store, not a bitswap
	// peer, the same nil the teacher passed.
	bsrv := blockservice.New(base, nil)
	adapter := &bsrvadapter.Adapter{Wrapped: bsrv}
	lsys := cidlink.DefaultLinkSystem()
	lsys.SetReadStorage(adapter)
	lsys.SetWriteStorage(adapter)
	bs.lsys = &lsys

	return bs, nil
}

func (bs *Blockstore) cachePut(b blocks.Block) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.cache.Add(b.Cid().String(), b)
}

func (bs *Blockstore) cacheGet(key string) (blocks.Block, bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.cache.Get(key)
}

// Get implements Store by loading the raw block and decoding it with
// whatever codec id's own multicodec tag names.
func (bs *Blockstore) Get(id cid.Cid) (datamodel.Node, error) {
	if blk, ok := bs.cacheGet(id.String()); ok {
		return decodeBlock(id, blk.RawData())
	}

	blk, err := bs.Blockstore.Get(context.Background(), id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBlockNotFound, id, err)
	}
	bs.cachePut(blk)
	return decodeBlock(id, blk.RawData())
}

// PutKeyed implements Store by trusting the caller's id: it encodes n under
// that id's codec and writes the resulting block verbatim, never recomputing
// or checking the id against n (spec §6.1).
func (bs *Blockstore) PutKeyed(id cid.Cid, n datamodel.Node) error {
	c, err := codec.ByTag(id.Type())
	if err != nil {
		return fmt.Errorf("store: put_keyed: %w", err)
	}
	raw, err := c.Encode(n)
	if err != nil {
		return fmt.Errorf("store: put_keyed: encoding %s: %w", id, err)
	}
	blk, err := blocks.NewBlockWithCid(raw, id)
	if err != nil {
		return fmt.Errorf("store: put_keyed: framing %s: %w", id, err)
	}
	if err := bs.Blockstore.Put(context.Background(), blk); err != nil {
		return fmt.Errorf("store: put_keyed: writing %s: %w", id, err)
	}
	bs.cachePut(blk)
	return nil
}

func decodeBlock(id cid.Cid, raw []byte) (datamodel.Node, error) {
	dec, err := multicodec.LookupDecoder(id.Type())
	if err != nil {
		return nil, fmt.Errorf("store: decoding %s: %w", id, err)
	}
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := dec(nb, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("store: decoding %s: %w", id, err)
	}
	return nb.Build(), nil
}

// Close is a no-op: closing the underlying Datastore is the caller's
// responsibility, since it's the caller who opened it.
func (bs *Blockstore) Close() error {
	return nil
}

// exploreAllSelector is the "whole subgraph, no limit" selector CAR
// export walks with.
func exploreAllSelector() datamodel.Node {
	sb := selb.NewSelectorSpecBuilder(basicnode.Prototype.Any)
	return sb.
		ExploreRecursive(selector.RecursionLimitNone(),
			sb.ExploreAll(sb.ExploreRecursiveEdge()),
		).Node()
}

// ExportCAR writes a CARv2 (with its default index) of the full subgraph
// rooted at root to w, a Go-native analogue of the original crate's reliance
// on a CAR file as the interchange format for an inlined (or extracted)
// document tree.
func (bs *Blockstore) ExportCAR(ctx context.Context, root cid.Cid, w io.Writer, opts ...carv2.WriteOption) error {
	writer, err := carv2.NewSelectiveWriter(ctx, bs.lsys, root, exploreAllSelector(), opts...)
	if err != nil {
		return fmt.Errorf("store: export car: %w", err)
	}
	if _, err := writer.WriteTo(w); err != nil {
		return fmt.Errorf("store: export car: %w", err)
	}
	return nil
}

// ImportCAR reads a CAR (v1 or v2) from r, writing every block it contains
// into bs, and returns the roots named in its header.
func (bs *Blockstore) ImportCAR(ctx context.Context, r io.Reader, opts ...carv2.ReadOption) ([]cid.Cid, error) {
	br, err := carv2.NewBlockReader(r, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: import car: %w", err)
	}
	for {
		blk, err := br.Next()
		if err == io.EOF {
			return br.Roots, nil
		}
		if err != nil {
			return nil, fmt.Errorf("store: import car: %w", err)
		}
		if err := bs.Blockstore.Put(ctx, blk); err != nil {
			return nil, fmt.Errorf("store: import car: writing %s: %w", blk.Cid(), err)
		}
		bs.cachePut(blk)
	}
}
