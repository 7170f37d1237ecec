package contentstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"

	"github.com/ipfs-shipyard/go-ipldstore/pkg/cidutil"
)

// MemStore is an in-memory Store. Blocks are keyed by their normalized CID,
// so a block written with a v0 identifier is retrievable through the v1 form
// and vice versa. Safe for concurrent use.
type MemStore struct {
	mu     sync.Mutex
	blocks map[string][]byte
	mhCode uint64
}

var (
	_ Store       = (*MemStore)(nil)
	_ BlockGetter = (*MemStore)(nil)
	_ BlockPutter = (*MemStore)(nil)
)

// MemStoreOption configures a MemStore.
type MemStoreOption func(*MemStore)

// WithHash sets the multihash function used for new blocks.
// The default is sha2-256.
func WithHash(code uint64) MemStoreOption {
	return func(s *MemStore) {
		s.mhCode = code
	}
}

// NewMemStore returns an empty in-memory store.
func NewMemStore(opts ...MemStoreOption) *MemStore {
	s := &MemStore{
		blocks: map[string][]byte{},
		mhCode: mh.SHA2_256,
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

func (s *MemStore) key(c cid.Cid) string {
	return cidutil.Normalize(c).KeyString()
}

// GetRaw returns the bytes addressed by c, or ErrNotFound.
func (s *MemStore) GetRaw(_ context.Context, c cid.Cid) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blocks[s.key(c)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cidutil.MustFormat(c))
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// PutRaw stores data under the given codec and returns its CID. The store
// has no chunker, so dag-pb requests are stored as single raw blocks; the
// bytes handed to PutRaw are always exactly the bytes GetRaw returns.
func (s *MemStore) PutRaw(ctx context.Context, data []byte, codec uint64) (cid.Cid, error) {
	if codec == uint64(multicodec.DagPb) {
		codec = uint64(multicodec.Raw)
	}
	c, err := cidutil.Sum(data, s.mhCode, codec)
	if err != nil {
		return cid.Undef, err
	}
	s.store(c, data)
	return c, nil
}

// PutBlock stores an exact encoded block addressed like an existing CID,
// keeping its codec and hash function.
func (s *MemStore) PutBlock(_ context.Context, data []byte, like cid.Cid) (cid.Cid, error) {
	prefix := like.Prefix()
	c, err := cidutil.Sum(data, prefix.MhType, prefix.Codec)
	if err != nil {
		return cid.Undef, err
	}
	s.store(c, data)
	return c, nil
}

func (s *MemStore) store(c cid.Cid, data []byte) {
	stored := make([]byte, len(data))
	copy(stored, data)
	s.mu.Lock()
	s.blocks[s.key(c)] = stored
	s.mu.Unlock()
}

// GetBlock is GetRaw: stored bytes are always exact block encodings here.
func (s *MemStore) GetBlock(ctx context.Context, c cid.Cid) ([]byte, error) {
	return s.GetRaw(ctx, c)
}

// Has reports whether the store holds the block addressed by c.
func (s *MemStore) Has(_ context.Context, c cid.Cid) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocks[s.key(c)]
	return ok, nil
}

// Len returns the number of stored blocks.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blocks)
}
