// Package contentstore provides content-addressed block storage backends for
// the mapper: an in-memory store and a store backed by a running IPFS (kubo)
// node's HTTP API.
//
// # Stores
//
// All backends implement the Store interface:
//
//	type Store interface {
//		GetRaw(ctx context.Context, c cid.Cid) ([]byte, error)
//		PutRaw(ctx context.Context, data []byte, codec uint64) (cid.Cid, error)
//		Has(ctx context.Context, c cid.Cid) (bool, error)
//	}
//
// PutRaw stores bytes under the given multicodec and returns the resulting
// CID (version 1, normalized). Three codecs are meaningful here:
//
//   - raw: chunk payloads stored as single blocks
//   - dag-cbor: structured nodes (the mapper's root manifest)
//   - dag-pb: large payloads routed through the node's unixfs chunker
//
// # NodeStore
//
// NodeStore talks to a local kubo daemon through its HTTP API:
//
//	store, err := contentstore.New(&config.Config{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	c, err := store.PutRaw(ctx, chunk, uint64(multicodec.Raw))
//
// Reads go through `block/get` (raw, dag-cbor) or `cat` (dag-pb), optionally
// falling back to the node's HTTP gateway when Config.UseGateway is set.
// A small LRU cache sits in front of the read path.
//
// Errors from the daemon are returned to the caller as-is: an unreachable
// daemon surfaces as a connection error on the first call, and an
// unresolvable CID surfaces as the node's lookup error. There is no retry
// layer in this package.
//
// # MemStore
//
// MemStore keeps blocks in a map, hashing with a configurable multihash
// function. It backs unit tests and CAR imports that should not touch a
// daemon:
//
//	store := contentstore.NewMemStore()
//
// # Bulk reads
//
// FetchMany retrieves many blocks at once. Backends that implement
// BulkFetcher (NodeStore does, with bounded concurrency) are used directly;
// any other Store gets a sequential fallback.
package contentstore
