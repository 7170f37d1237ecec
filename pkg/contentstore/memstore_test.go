package contentstore

import (
	"context"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"

	"github.com/ipfs-shipyard/go-ipldstore/pkg/cidutil"
)

func TestMemStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	c, err := s.PutRaw(ctx, []byte("hello"), uint64(multicodec.Raw))
	if err != nil {
		t.Fatalf("PutRaw: %v", err)
	}
	if !cidutil.IsRaw(c) || c.Version() != 1 {
		t.Fatalf("unexpected cid: %s", c)
	}

	data, err := s.GetRaw(ctx, c)
	if err != nil {
		t.Fatalf("GetRaw: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("GetRaw = %q", data)
	}

	ok, err := s.Has(ctx, c)
	if err != nil || !ok {
		t.Fatalf("Has = %v, %v", ok, err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestMemStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	missing, err := cidutil.Sum([]byte("never stored"), mh.SHA2_256, uint64(multicodec.Raw))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}

	if _, err := s.GetRaw(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRaw error = %v, want ErrNotFound", err)
	}
	ok, err := s.Has(ctx, missing)
	if err != nil || ok {
		t.Fatalf("Has = %v, %v", ok, err)
	}
}

func TestMemStore_Deterministic(t *testing.T) {
	ctx := context.Background()

	a, err := NewMemStore().PutRaw(ctx, []byte{1, 2, 3}, uint64(multicodec.Raw))
	if err != nil {
		t.Fatalf("PutRaw: %v", err)
	}
	b, err := NewMemStore().PutRaw(ctx, []byte{1, 2, 3}, uint64(multicodec.Raw))
	if err != nil {
		t.Fatalf("PutRaw: %v", err)
	}
	if !a.Equals(b) {
		t.Fatal("equal bytes yielded different identifiers")
	}
}

func TestMemStore_DagPbFallsBackToRaw(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	// The memory store has no chunker, so dag-pb requests become raw blocks.
	c, err := s.PutRaw(ctx, []byte("big value"), uint64(multicodec.DagPb))
	if err != nil {
		t.Fatalf("PutRaw: %v", err)
	}
	if !cidutil.IsRaw(c) {
		t.Fatalf("expected raw codec, got %s", cidutil.CodecName(c))
	}
	data, err := s.GetRaw(ctx, c)
	if err != nil || string(data) != "big value" {
		t.Fatalf("GetRaw = %q, %v", data, err)
	}
}

func TestMemStore_NormalizedKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	c, err := s.PutRaw(ctx, []byte("x"), uint64(multicodec.DagCbor))
	if err != nil {
		t.Fatalf("PutRaw: %v", err)
	}

	// Reading through the normalized form of the same identifier works.
	if _, err := s.GetRaw(ctx, cidutil.Normalize(c)); err != nil {
		t.Fatalf("GetRaw via normalized cid: %v", err)
	}
}

func TestFetchMany_SequentialFallback(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	c1, _ := s.PutRaw(ctx, []byte("one"), uint64(multicodec.Raw))
	c2, _ := s.PutRaw(ctx, []byte("two"), uint64(multicodec.Raw))

	got, err := FetchMany(ctx, s, []cid.Cid{c1, c2})
	if err != nil {
		t.Fatalf("FetchMany: %v", err)
	}
	if string(got[c1]) != "one" || string(got[c2]) != "two" {
		t.Fatalf("FetchMany = %v", got)
	}

	missing, _ := cidutil.Sum([]byte("gone"), mh.SHA2_256, uint64(multicodec.Raw))
	if _, err := FetchMany(ctx, s, []cid.Cid{c1, missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FetchMany error = %v, want ErrNotFound", err)
	}
}

func TestPutBlock_PreservesPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	like, err := cidutil.Sum([]byte("template"), mh.BLAKE3, uint64(multicodec.DagCbor))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}

	got, err := s.PutBlock(ctx, []byte("payload"), like)
	if err != nil {
		t.Fatalf("PutBlock: %v", err)
	}
	if got.Prefix().Codec != like.Prefix().Codec {
		t.Fatalf("codec changed: %d", got.Prefix().Codec)
	}
	if got.Prefix().MhType != like.Prefix().MhType {
		t.Fatalf("hash function changed: %d", got.Prefix().MhType)
	}
}
