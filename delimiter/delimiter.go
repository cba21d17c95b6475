// Package delimiter recognizes and constructs the inline-wrapper shape
// (spec §3.2): a Map with exactly one key "/" whose value is itself a Map
// holding "data" (required) and "link" (optional, explicit form).
package delimiter

import (
	"errors"
	"fmt"

	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// ErrNotDelimiter is returned by Parse when n does not have the delimiter
// shape.
var ErrNotDelimiter = errors.New("delimiter: not a delimiter node")

const (
	keySlash = "/"
	keyData  = "data"
	keyLink  = "link"
)

// Parsed is the result of recognizing a delimiter node: its inner "data"
// payload, and -- for the explicit form -- the caller-declared Link.
type Parsed struct {
	Data datamodel.Node
	// Link is non-nil only for the explicit form (spec §3.3).
	Link *datamodel.Link
}

// IsDelimiter reports whether n has the wrapper shape: Kind_Map, exactly
// one entry, keyed "/". It does not look inside the "/" value -- that is
// Parse's job -- so it is cheap enough to call as a peek.
func IsDelimiter(n datamodel.Node) bool {
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
	return ks == keySlash
}

// Parse recognizes and decomposes a delimiter node. It returns
// ErrNotDelimiter if n is not a delimiter at all, or if the "/" value is
// missing "data", or holds any key other than "data" and "link", or if
// "link" is present but is not itself a Link kind --
// per the decided reading of spec §9, a non-Link "link" value disqualifies
// the node as a delimiter entirely rather than falling back to the inherit
// form.
func Parse(n datamodel.Node) (Parsed, error) {
	if !IsDelimiter(n) {
		return Parsed{}, ErrNotDelimiter
	}

	mi := n.MapIterator()
	_, v, err := mi.Next()
	if err != nil {
		return Parsed{}, fmt.Errorf("delimiter: reading \"/\" value: %w", err)
	}
	if v.Kind() != datamodel.Kind_Map {
		return Parsed{}, fmt.Errorf("%w: \"/\" value is not a map", ErrNotDelimiter)
	}

	var data datamodel.Node
	var link *datamodel.Link
	inner := v.MapIterator()
	for !inner.Done() {
		k, val, err := inner.Next()
		if err != nil {
			return Parsed{}, fmt.Errorf("delimiter: iterating inline wrapper: %w", err)
		}
		ks, err := k.AsString()
		if err != nil {
			return Parsed{}, fmt.Errorf("delimiter: non-string key in inline wrapper: %w", err)
		}
		switch ks {
		case keyData:
			data = val
		case keyLink:
			if val.Kind() != datamodel.Kind_Link {
				return Parsed{}, fmt.Errorf("%w: \"link\" value is not a Link", ErrNotDelimiter)
			}
			l, err := val.AsLink()
			if err != nil {
				return Parsed{}, fmt.Errorf("delimiter: reading link value: %w", err)
			}
			link = &l
		default:
			return Parsed{}, fmt.Errorf("%w: unexpected key %q in inline wrapper", ErrNotDelimiter, ks)
		}
	}

	if data == nil {
		return Parsed{}, fmt.Errorf("%w: missing \"data\"", ErrNotDelimiter)
	}

	return Parsed{Data: data, Link: link}, nil
}

// Wrap builds a delimiter node around data. If link is non-nil it builds
// the explicit form {"/": {"data": data, "link": link}}; otherwise the
// inherit form {"/": {"data": data}}.
func Wrap(data datamodel.Node, link *datamodel.Link) (datamodel.Node, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	outer, err := nb.BeginMap(1)
	if err != nil {
		return nil, fmt.Errorf("delimiter: begin outer map: %w", err)
	}
	if err := outer.AssembleKey().AssignString(keySlash); err != nil {
		return nil, fmt.Errorf("delimiter: assign \"/\" key: %w", err)
	}

	innerSize := int64(1)
	if link != nil {
		innerSize = 2
	}
	inner, err := outer.AssembleValue().BeginMap(innerSize)
	if err != nil {
		return nil, fmt.Errorf("delimiter: begin inline wrapper: %w", err)
	}
	if err := inner.AssembleKey().AssignString(keyData); err != nil {
		return nil, fmt.Errorf("delimiter: assign \"data\" key: %w", err)
	}
	if err := inner.AssembleValue().AssignNode(data); err != nil {
		return nil, fmt.Errorf("delimiter: assign \"data\" value: %w", err)
	}
	if link != nil {
		if err := inner.AssembleKey().AssignString(keyLink); err != nil {
			return nil, fmt.Errorf("delimiter: assign \"link\" key: %w", err)
		}
		if err := inner.AssembleValue().AssignLink(*link); err != nil {
			return nil, fmt.Errorf("delimiter: assign \"link\" value: %w", err)
		}
	}
	if err := inner.Finish(); err != nil {
		return nil, fmt.Errorf("delimiter: finish inline wrapper: %w", err)
	}
	if err := outer.Finish(); err != nil {
		return nil, fmt.Errorf("delimiter: finish outer map: %w", err)
	}

	return nb.Build(), nil
}

// WrapBare builds a bare Link node, the shape the Inliner splices in when
// the caller chooses to ignore a stuck expansion (spec §4.5.1).
func WrapBare(c cidlink.Link) datamodel.Node {
	nb := basicnode.Prototype.Any.NewBuilder()
	_ = nb.AssignLink(c)
	return nb.Build()
}
