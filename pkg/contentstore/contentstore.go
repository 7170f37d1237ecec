package contentstore

import (
	"context"
	"errors"
	"sync"

	"github.com/ipfs/go-cid"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned by stores when a block is not present. Callers
// should test with errors.Is; the daemon-backed store wraps the node's own
// lookup errors around it where it can tell them apart from transport
// failures.
var ErrNotFound = errors.New("block not found")

// fetchConcurrency bounds parallel reads in FetchMany.
const fetchConcurrency = 8

// Store is a content-addressed block store.
type Store interface {
	// GetRaw returns the bytes addressed by c.
	GetRaw(ctx context.Context, c cid.Cid) ([]byte, error)
	// PutRaw stores data under the given multicodec and returns its CID.
	PutRaw(ctx context.Context, data []byte, codec uint64) (cid.Cid, error)
	// Has reports whether the store holds the block addressed by c.
	Has(ctx context.Context, c cid.Cid) (bool, error)
}

// BulkFetcher is implemented by stores that can retrieve many blocks at once.
type BulkFetcher interface {
	FetchMany(ctx context.Context, cids []cid.Cid) (map[cid.Cid][]byte, error)
}

// BlockGetter is implemented by stores that can return the exact encoded
// block for a CID. This differs from GetRaw for dag-pb content, where GetRaw
// returns the assembled file bytes rather than the node encoding. DAG-level
// operations (CAR export) need the encoding.
type BlockGetter interface {
	GetBlock(ctx context.Context, c cid.Cid) ([]byte, error)
}

// BlockPutter is implemented by stores that can write an exact encoded block
// without re-chunking, keeping the codec and hash function of an existing
// identifier. DAG-level operations (CAR import) need this to preserve
// identifiers.
type BlockPutter interface {
	PutBlock(ctx context.Context, data []byte, like cid.Cid) (cid.Cid, error)
}

// GetBlock reads the exact encoded block for c, falling back to GetRaw for
// stores without a distinct block path.
func GetBlock(ctx context.Context, s Store, c cid.Cid) ([]byte, error) {
	if bg, ok := s.(BlockGetter); ok {
		return bg.GetBlock(ctx, c)
	}
	return s.GetRaw(ctx, c)
}

// PutBlock writes an exact encoded block addressed like the given CID,
// falling back to PutRaw for stores without a distinct block path.
func PutBlock(ctx context.Context, s Store, data []byte, like cid.Cid) (cid.Cid, error) {
	if bp, ok := s.(BlockPutter); ok {
		return bp.PutBlock(ctx, data, like)
	}
	return s.PutRaw(ctx, data, like.Prefix().Codec)
}

// FetchMany retrieves the given blocks from s. Stores implementing
// BulkFetcher are used directly; otherwise blocks are read one by one.
// The first failed read aborts the whole fetch.
func FetchMany(ctx context.Context, s Store, cids []cid.Cid) (map[cid.Cid][]byte, error) {
	if bf, ok := s.(BulkFetcher); ok {
		return bf.FetchMany(ctx, cids)
	}

	out := make(map[cid.Cid][]byte, len(cids))
	for _, c := range cids {
		data, err := s.GetRaw(ctx, c)
		if err != nil {
			return nil, err
		}
		out[c] = data
	}
	return out, nil
}

// fetchManyConcurrent is the shared concurrent implementation used by stores
// that opt into BulkFetcher.
func fetchManyConcurrent(ctx context.Context, s Store, cids []cid.Cid) (map[cid.Cid][]byte, error) {
	var mu sync.Mutex
	out := make(map[cid.Cid][]byte, len(cids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, c := range cids {
		g.Go(func() error {
			data, err := s.GetRaw(gctx, c)
			if err != nil {
				return err
			}
			mu.Lock()
			out[c] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
