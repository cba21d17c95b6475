// Package datastore wraps a badger-backed key-value store, the persistence
// layer underneath store.Blockstore.
package datastore

import (
	ds "github.com/ipfs/go-datastore"
	badger4 "github.com/ipfs/go-ds-badger4"
)

// Datastore is the subset of go-datastore's capability interfaces this
// module actually drives: a plain key-value store that can batch writes,
// the one thing boxo's blockstore wrapping needs from its backing store
// (ds.Batching already embeds ds.Datastore).
type Datastore interface {
	ds.Batching
}

var _ Datastore = (*datastorage)(nil)

type datastorage struct {
	*badger4.Datastore
}

// NewDatastorage opens (creating if necessary) a badger-backed Datastore at
// path.
func NewDatastorage(path string, opts *badger4.Options) (Datastore, error) {
	bds, err := badger4.NewDatastore(path, opts)
	if err != nil {
		return nil, err
	}
	return &datastorage{Datastore: bds}, nil
}
