package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/ipfs-shipyard/go-ipldstore/internal/testutil"
	"github.com/ipfs-shipyard/go-ipldstore/pkg/cidutil"
	"github.com/ipfs-shipyard/go-ipldstore/pkg/config"
)

// TestMapper_AgainstDaemon drives a full write/freeze/reopen cycle through
// the HTTP RPC surface of an in-process node.
func TestMapper_AgainstDaemon(t *testing.T) {
	d := testutil.NewFakeDaemon()
	defer d.Close()
	ctx := context.Background()

	cfg := &config.Config{
		APIAddr: d.URL(),
		Timeouts: config.Timeouts{
			Dial:     5 * time.Second,
			BlockGet: 5 * time.Second,
			BlockPut: 5 * time.Second,
			Resolve:  5 * time.Second,
		},
	}
	w, err := NewMapper(cfg)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}

	chunk := make([]byte, 24)
	for i := int64(0); i < 3; i++ {
		binary.LittleEndian.PutUint64(chunk[i*8:], uint64(i+1))
	}
	writes := map[string][]byte{
		".zgroup":   []byte(`{"zarr_format":2}`),
		"a/.zarray": []byte(`{"chunks":[3],"dtype":"<i8","shape":[3],"zarr_format":2}`),
		"a/0":       chunk,
	}
	for k, v := range writes {
		if err := w.Set(ctx, k, v); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}

	rootStr, err := w.FreezeString(ctx)
	if err != nil {
		t.Fatalf("FreezeString: %v", err)
	}
	root, err := cidutil.Parse(rootStr)
	if err != nil {
		t.Fatalf("Parse root %q: %v", rootStr, err)
	}
	if !cidutil.IsDagCbor(root) {
		t.Fatalf("root codec = %s, want dag-cbor", cidutil.CodecName(root))
	}
	if !d.Has(root) {
		t.Fatal("root block not on the node")
	}

	// A second mapper bound to the same node must see everything through
	// the root alone.
	r, err := NewMapper(cfg)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	if err := r.SetRootString(ctx, rootStr); err != nil {
		t.Fatalf("SetRootString: %v", err)
	}
	got, err := r.Get(ctx, "a/0")
	if err != nil {
		t.Fatalf("Get a/0: %v", err)
	}
	if !bytes.Equal(got, chunk) {
		t.Fatal("chunk bytes changed across daemon round trip")
	}
	if r.Len() != len(writes) {
		t.Fatalf("Len = %d, want %d", r.Len(), len(writes))
	}
}
