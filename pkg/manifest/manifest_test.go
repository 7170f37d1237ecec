package manifest

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
)

func testLink(t *testing.T, data string) cid.Cid {
	t.Helper()
	h, err := mh.Sum([]byte(data), mh.SHA2_256, -1)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return cid.NewCidV1(uint64(multicodec.Raw), h)
}

func TestSetGetDelete(t *testing.T) {
	m := New()
	c0 := testLink(t, "chunk0")
	c1 := testLink(t, "chunk1")

	if err := m.Set("a/0", c0); err != nil {
		t.Fatalf("Set a/0: %v", err)
	}
	if err := m.Set("a/1", c1); err != nil {
		t.Fatalf("Set a/1: %v", err)
	}
	if err := m.Set("a/.zarray", Doc{V: map[string]any{"shape": []any{float64(3)}}}); err != nil {
		t.Fatalf("Set a/.zarray: %v", err)
	}

	v, ok := m.Get("a/0")
	if !ok {
		t.Fatal("a/0 missing")
	}
	if got := v.(cid.Cid); !got.Equals(c0) {
		t.Fatalf("a/0 = %s, want %s", got, c0)
	}

	if _, ok := m.Get("a"); ok {
		t.Fatal("interior node should not Get")
	}
	if _, ok := m.Get("missing/key"); ok {
		t.Fatal("missing key should not Get")
	}

	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}
	want := []string{"a/.zarray", "a/0", "a/1"}
	if got := m.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys = %v, want %v", got, want)
	}
	if got := len(m.Links()); got != 2 {
		t.Fatalf("Links count = %d, want 2", got)
	}

	if !m.Delete("a/1") {
		t.Fatal("Delete a/1 reported missing")
	}
	if m.Delete("a/1") {
		t.Fatal("second Delete a/1 reported found")
	}
	if m.Delete("a") {
		t.Fatal("Delete of interior node reported found")
	}
	if m.Len() != 2 {
		t.Fatalf("Len after delete = %d, want 2", m.Len())
	}
}

func TestDelete_PrunesEmptyInteriors(t *testing.T) {
	m := New()
	if err := m.Set("g/a/0", testLink(t, "x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !m.Delete("g/a/0") {
		t.Fatal("Delete reported missing")
	}
	if m.Len() != 0 {
		t.Fatalf("Len = %d, want 0", m.Len())
	}
	// The pruned prefix must be reusable as a leaf.
	if err := m.Set("g", testLink(t, "y")); err != nil {
		t.Fatalf("Set after prune: %v", err)
	}
}

func TestSet_PathConflicts(t *testing.T) {
	m := New()
	if err := m.Set("a/0", testLink(t, "x")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := m.Set("a/0/deeper", testLink(t, "y")); err == nil {
		t.Fatal("expected error setting through a leaf")
	}
	if err := m.Set("a", testLink(t, "y")); err == nil {
		t.Fatal("expected error setting over a prefix")
	}
	if err := m.Set("a/0", "not a link"); err == nil {
		t.Fatal("expected error for unsupported value type")
	}

	// Overwriting a leaf is allowed.
	if err := m.Set("a/0", testLink(t, "z")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	m := New()
	c0 := testLink(t, "chunk0")
	pairs := map[string]any{
		"a/0":       c0,
		"a/.zarray": Doc{V: map[string]any{"shape": []any{float64(3)}, "dtype": "<i8"}},
		".zgroup":   Doc{V: map[string]any{"zarr_format": float64(2)}},
		".zattrs":   Doc{V: map[string]any{"title": "test", "valid": true, "fill": nil}},
	}
	for k, v := range pairs {
		if err := m.Set(k, v); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}

	data, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !reflect.DeepEqual(back.Keys(), m.Keys()) {
		t.Fatalf("keys changed: %v vs %v", back.Keys(), m.Keys())
	}
	v, ok := back.Get("a/0")
	if !ok || !v.(cid.Cid).Equals(c0) {
		t.Fatal("link did not survive round trip")
	}

	doc, ok := back.Get("a/.zarray")
	if !ok {
		t.Fatal(".zarray missing after round trip")
	}
	arr := doc.(Doc).V.(map[string]any)
	if arr["dtype"] != "<i8" {
		t.Fatalf("dtype = %v", arr["dtype"])
	}
	// Whole JSON numbers come back as integers.
	shape := arr["shape"].([]any)
	if shape[0] != int64(3) {
		t.Fatalf("shape[0] = %v (%T), want int64(3)", shape[0], shape[0])
	}
}

func TestEncode_Deterministic(t *testing.T) {
	build := func(order []string) []byte {
		m := New()
		links := map[string]cid.Cid{
			"a/0": testLink(t, "chunk0"),
			"a/1": testLink(t, "chunk1"),
			"b/0": testLink(t, "chunk2"),
		}
		for _, k := range order {
			if err := m.Set(k, links[k]); err != nil {
				t.Fatalf("Set %s: %v", k, err)
			}
		}
		data, err := m.Encode()
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		return data
	}

	first := build([]string{"a/0", "a/1", "b/0"})
	second := build([]string{"b/0", "a/1", "a/0"})
	if !bytes.Equal(first, second) {
		t.Fatal("insertion order changed the encoding")
	}
}

func TestIsInlineKey(t *testing.T) {
	cases := map[string]bool{
		".zarray":     true,
		"a/.zarray":   true,
		"a/b/.zattrs": true,
		"a/0":         false,
		"zarray":      false,
	}
	for key, want := range cases {
		if got := IsInlineKey(key); got != want {
			t.Errorf("IsInlineKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestDecode_RejectsNonMap(t *testing.T) {
	// 0x01 is a bare CBOR integer.
	if _, err := Decode([]byte{0x01}); err == nil {
		t.Fatal("expected error decoding non-map root")
	}
}
