package extractor

import (
	"testing"

	"github.com/expede/ipld-inline/codec"
	"github.com/expede/ipld-inline/digest"
	"github.com/expede/ipld-inline/internal/testnode"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, root datamodel.Node) map[string]datamodel.Node {
	t.Helper()
	e := New(root, codec.DagCBOR, digest.SHA2_256, 1)
	out := make(map[string]datamodel.Node)
	for {
		p, ok, err := e.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out[p.Id.String()] = p.Node
	}
	return out
}

// TestStoreIdentity mirrors extractor.rs's store_identity_test: a document
// with no recognizable delimiters extracts to exactly itself.
func TestStoreIdentity(t *testing.T) {
	doc := testnode.Map(
		testnode.KV{Key: "a", Value: testnode.List(testnode.String("b"), testnode.Int(1), testnode.Int(2),
			testnode.Map(testnode.KV{Key: "c", Value: testnode.String("d")}))},
		testnode.KV{Key: "e", Value: testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
			testnode.KV{Key: "data", Value: testnode.Int(123)},
			testnode.KV{Key: "don't match", Value: testnode.Int(42)},
		)})},
	)

	got := drain(t, doc)
	require.Len(t, got, 1)

	for _, n := range got {
		assert.True(t, datamodel.DeepEqual(doc, n))
	}
}

// TestStoreSingleTopLinkful mirrors store_single_top_linkful_test: the
// whole document is an explicit-form delimiter, so the "document" reduces
// to a bare Link.
func TestStoreSingleTopLinkful(t *testing.T) {
	arrCid := testnode.MustCid("bafyreickxqyrg7hhhdm2z24kduovd4k4vvbmfmenzn7nc6pxg6qzjm2v44")
	outerCid := testnode.MustCid("bafyreihnubkcms63243zlfgnwiugmk6ijitz63me7bqf455ia2fpbn4ceq")

	arr := testnode.List(testnode.Int(1), testnode.Int(2), testnode.Int(3))
	doc := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: arr},
		testnode.KV{Key: "link", Value: testnode.Link(arrCid)},
	)})

	got := drain(t, doc)
	require.Len(t, got, 2)

	require.Contains(t, got, arrCid.String())
	assert.True(t, datamodel.DeepEqual(arr, got[arrCid.String()]))

	require.Contains(t, got, outerCid.String())
	assert.Equal(t, datamodel.Kind_Link, got[outerCid.String()].Kind())
}

// TestStoreSingleNotTop mirrors store_single_not_top_test: an inherit-form
// delimiter nested inside a list.
func TestStoreSingleNotTop(t *testing.T) {
	cid1 := testnode.MustCid("bafyreickxqyrg7hhhdm2z24kduovd4k4vvbmfmenzn7nc6pxg6qzjm2v44")
	cid2 := testnode.MustCid("bafyreic6rlmkazpohhul74xyu654gs4k37idb2uz6r7vurebasdi766kga")

	arr := testnode.List(testnode.Int(1), testnode.Int(2), testnode.Int(3))
	wrapped := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: arr},
	)})
	doc := testnode.List(wrapped)

	got := drain(t, doc)
	require.Len(t, got, 2)

	require.Contains(t, got, cid1.String())
	assert.True(t, datamodel.DeepEqual(arr, got[cid1.String()]))
	require.Contains(t, got, cid2.String())
	assert.Equal(t, datamodel.Kind_List, got[cid2.String()].Kind())
}

// TestStoreSingleNotTopLinkful mirrors store_single_not_top_linkful_test.
func TestStoreSingleNotTopLinkful(t *testing.T) {
	arrCid := testnode.MustCid("bafyreickxqyrg7hhhdm2z24kduovd4k4vvbmfmenzn7nc6pxg6qzjm2v44")
	outerCid := testnode.MustCid("bafyreic6rlmkazpohhul74xyu654gs4k37idb2uz6r7vurebasdi766kga")

	arr := testnode.List(testnode.Int(1), testnode.Int(2), testnode.Int(3))
	wrapped := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: arr},
		testnode.KV{Key: "link", Value: testnode.Link(arrCid)},
	)})
	doc := testnode.List(wrapped)

	got := drain(t, doc)
	require.Len(t, got, 2)
	require.Contains(t, got, arrCid.String())
	assert.True(t, datamodel.DeepEqual(arr, got[arrCid.String()]))
	require.Contains(t, got, outerCid.String())
}

// TestStoreNested mirrors store_nested_test: a delimiter inside a
// delimiter's "data".
func TestStoreNested(t *testing.T) {
	cid1 := testnode.MustCid("bafyreia5h7xzw5e2wknxfzd5qmty3ebe452q7iwys6qo6lstpi5mlknkyu")
	cid2 := testnode.MustCid("bafyreieytegtxlityotbbwbe3445s327jghqlbwyv7k7kxnpzjj7k3c6yu")
	cid3 := testnode.MustCid("bafyreifxzbwbet5pqer5bopvf3wxgvooaijrhynk2wfoksygml6glk44m4")

	innerArr := testnode.List(testnode.String("a"), testnode.String("b"))
	innerWrapped := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: innerArr},
	)})
	midArr := testnode.List(testnode.Int(1), innerWrapped)
	doc := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: midArr},
	)})

	got := drain(t, doc)
	require.Len(t, got, 3)

	assert.True(t, datamodel.DeepEqual(innerArr, got[cid1.String()]))
	assert.Equal(t, datamodel.Kind_List, got[cid2.String()].Kind())
	assert.Equal(t, datamodel.Kind_Link, got[cid3.String()].Kind())
}

// TestStoreNestedLinkful mirrors store_nested_linkful_test.
func TestStoreNestedLinkful(t *testing.T) {
	innerCid := testnode.MustCid("bafyreia5h7xzw5e2wknxfzd5qmty3ebe452q7iwys6qo6lstpi5mlknkyu")
	midCid := testnode.MustCid("bafyreieytegtxlityotbbwbe3445s327jghqlbwyv7k7kxnpzjj7k3c6yu")
	outerCid := testnode.MustCid("bafyreifxzbwbet5pqer5bopvf3wxgvooaijrhynk2wfoksygml6glk44m4")

	innerArr := testnode.List(testnode.String("a"), testnode.String("b"))
	innerWrapped := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: innerArr},
		testnode.KV{Key: "link", Value: testnode.Link(innerCid)},
	)})
	midArr := testnode.List(testnode.Int(1), innerWrapped)
	doc := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: midArr},
		testnode.KV{Key: "link", Value: testnode.Link(midCid)},
	)})

	got := drain(t, doc)
	require.Len(t, got, 3)
	assert.True(t, datamodel.DeepEqual(innerArr, got[innerCid.String()]))

	midWant := testnode.List(testnode.Int(1), testnode.Link(innerCid))
	assert.True(t, datamodel.DeepEqual(midWant, got[midCid.String()]))

	assert.Equal(t, datamodel.Kind_Link, got[outerCid.String()].Kind())
}

// TestStoreMixed mirrors store_mixed_test: several sibling keys, only some
// of which are recognized delimiters.
func TestStoreMixed(t *testing.T) {
	arrCid := testnode.MustCid("bafyreia5h7xzw5e2wknxfzd5qmty3ebe452q7iwys6qo6lstpi5mlknkyu")
	midCid := testnode.MustCid("bafyreifxzbwbet5pqer5bopvf3wxgvooaijrhynk2wfoksygml6glk44m4")
	entryCid := testnode.MustCid("bafyreihxkjjf3kxhwiozngod4zlbhwzqqybn2f6fm5lot7xfobjiuxg63m")
	outerCid := testnode.MustCid("bafyreibvo5xlmuj5jluhvsrl57goinrvcojh4c3n2k2z7fwido3pyxrct4")

	innerArr := testnode.List(testnode.String("a"), testnode.String("b"))
	innerWrapped := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: innerArr},
		testnode.KV{Key: "link", Value: testnode.Link(arrCid)},
	)})
	entryArr := testnode.List(testnode.Int(1), innerWrapped, testnode.Int(2), testnode.Int(3))
	entryWrapped := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: entryArr},
	)})

	doMatch := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: testnode.List(testnode.Int(7), testnode.Int(8), testnode.Int(9))},
		testnode.KV{Key: "link", Value: testnode.Link(midCid)},
	)})
	dontMatch := testnode.Map(
		testnode.KV{Key: "breaks!", Value: testnode.String("NOPE!")},
		testnode.KV{Key: "data", Value: testnode.List(testnode.Int(4), testnode.Int(5), testnode.Int(6))},
		testnode.KV{Key: "do match", Value: doMatch},
	)

	doc := testnode.Map(
		testnode.KV{Key: "don't match", Value: dontMatch},
		testnode.KV{Key: "entry", Value: entryWrapped},
		testnode.KV{Key: "more", Value: testnode.List(testnode.String("hello"), testnode.String("world"))},
	)

	got := drain(t, doc)
	require.Len(t, got, 4)

	assert.True(t, datamodel.DeepEqual(innerArr, got[arrCid.String()]))
	midWant := testnode.List(testnode.Int(7), testnode.Int(8), testnode.Int(9))
	assert.True(t, datamodel.DeepEqual(midWant, got[midCid.String()]))

	entryWant := testnode.List(testnode.Int(1), testnode.Link(arrCid), testnode.Int(2), testnode.Int(3))
	assert.True(t, datamodel.DeepEqual(entryWant, got[entryCid.String()]))

	outerWant := testnode.Map(
		testnode.KV{Key: "don't match", Value: testnode.Map(
			testnode.KV{Key: "breaks!", Value: testnode.String("NOPE!")},
			testnode.KV{Key: "data", Value: testnode.List(testnode.Int(4), testnode.Int(5), testnode.Int(6))},
			testnode.KV{Key: "do match", Value: testnode.Link(midCid)},
		)},
		testnode.KV{Key: "entry", Value: testnode.Link(entryCid)},
		testnode.KV{Key: "more", Value: testnode.List(testnode.String("hello"), testnode.String("world"))},
	)
	assert.True(t, datamodel.DeepEqual(outerWant, got[outerCid.String()]))
}

// TestStrictModeRejectsMismatchedLink exercises the strict-mode extension
// (spec §9): a declared "link" that doesn't match the recomputed id of
// "data" is an error, not silently trusted.
func TestStrictModeRejectsMismatchedLink(t *testing.T) {
	wrongCid := testnode.MustCid("bafyreifxzbwbet5pqer5bopvf3wxgvooaijrhynk2wfoksygml6glk44m4")
	doc := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: testnode.Int(123)},
		testnode.KV{Key: "link", Value: testnode.Link(wrongCid)},
	)})

	e := New(doc, codec.DagCBOR, digest.SHA2_256, 1).WithStrict(true)
	_, _, err := e.Next()
	require.Error(t, err)
}

func TestExtractorAllHelper(t *testing.T) {
	doc := testnode.Map(testnode.KV{Key: "/", Value: testnode.Map(
		testnode.KV{Key: "data", Value: testnode.Int(1)},
	)})
	pairs, err := All(doc, codec.DagCBOR, digest.SHA2_256, 1)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	// root is always last
	assert.Equal(t, datamodel.Kind_Link, pairs[len(pairs)-1].Node.Kind())
}
