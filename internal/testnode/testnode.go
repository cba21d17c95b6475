// Package testnode provides small datamodel.Node builder helpers shared by
// this module's tests. It exists only to keep test fixtures readable; the
// library code itself builds nodes directly against basicnode, the way the
// teacher repository does.
package testnode

import (
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// KV is one key/value entry for Map. Entries are assembled in the order
// given; tests that care about sort order should already list them sorted.
type KV struct {
	Key   string
	Value datamodel.Node
}

func Null() datamodel.Node {
	nb := basicnode.Prototype.Any.NewBuilder()
	_ = nb.AssignNull()
	return nb.Build()
}

func Bool(b bool) datamodel.Node {
	nb := basicnode.Prototype.Any.NewBuilder()
	_ = nb.AssignBool(b)
	return nb.Build()
}

func Int(i int64) datamodel.Node {
	nb := basicnode.Prototype.Any.NewBuilder()
	_ = nb.AssignInt(i)
	return nb.Build()
}

func Float(f float64) datamodel.Node {
	nb := basicnode.Prototype.Any.NewBuilder()
	_ = nb.AssignFloat(f)
	return nb.Build()
}

func String(s string) datamodel.Node {
	nb := basicnode.Prototype.Any.NewBuilder()
	_ = nb.AssignString(s)
	return nb.Build()
}

func Bytes(b []byte) datamodel.Node {
	nb := basicnode.Prototype.Any.NewBuilder()
	_ = nb.AssignBytes(b)
	return nb.Build()
}

func Link(c cid.Cid) datamodel.Node {
	nb := basicnode.Prototype.Any.NewBuilder()
	_ = nb.AssignLink(cidlink.Link{Cid: c})
	return nb.Build()
}

func List(items ...datamodel.Node) datamodel.Node {
	nb := basicnode.Prototype.Any.NewBuilder()
	la, err := nb.BeginList(int64(len(items)))
	if err != nil {
		panic(err)
	}
	for _, it := range items {
		if err := la.AssembleValue().AssignNode(it); err != nil {
			panic(err)
		}
	}
	if err := la.Finish(); err != nil {
		panic(err)
	}
	return nb.Build()
}

func Map(entries ...KV) datamodel.Node {
	nb := basicnode.Prototype.Any.NewBuilder()
	ma, err := nb.BeginMap(int64(len(entries)))
	if err != nil {
		panic(err)
	}
	for _, e := range entries {
		if err := ma.AssembleKey().AssignString(e.Key); err != nil {
			panic(err)
		}
		if err := ma.AssembleValue().AssignNode(e.Value); err != nil {
			panic(err)
		}
	}
	if err := ma.Finish(); err != nil {
		panic(err)
	}
	return nb.Build()
}

func MustCid(s string) cid.Cid {
	c, err := cid.Decode(s)
	if err != nil {
		panic(err)
	}
	return c
}
