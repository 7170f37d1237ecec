// Package store exposes the key/value mapper that lets a chunked-array
// library persist and retrieve its chunks through an IPFS node.
//
// # Sessions
//
// A Mapper holds one read or write session. A write session starts empty (or
// from an existing root via SetRoot), accumulates keys, and is finalized with
// Freeze, which returns the content identifier (CID) of the session's root
// node:
//
//	m, err := store.NewMapper(&config.Config{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = m.Set(ctx, "a/0", chunkBytes)
//	root, err := m.Freeze(ctx)
//	fmt.Println(cidutil.MustFormat(root))
//
// A later session re-opens the same data by root:
//
//	m2, err := store.NewMapper(&config.Config{})
//	err = m2.SetRoot(ctx, root)
//	data, err := m2.Get(ctx, "a/0")
//
// The root uniquely and immutably denotes one snapshot of the written key
// space: re-resolving it always yields the same bytes, and writing the same
// keys and bytes in any order always freezes to the same root.
//
// # Keys and values
//
// Keys are slash-separated paths ("a/0", "group/var/.zarray"). Chunk values
// are stored as their own blocks (raw, or chunked unixfs files above the
// configured size limit) and linked from the root node. The well-known Zarr
// metadata documents (.zarray, .zgroup, .zattrs, .zmetadata) are parsed as
// JSON and embedded inline in the root, so a frozen dataset is
// self-describing.
//
// # Failure behavior
//
// Missing keys return ErrNotFound. An unreachable daemon surfaces as a
// connection error from the first operation that needs it; nothing is
// retried. SetRoot with an unknown identifier fails with the node's lookup
// error rather than yielding an empty mapper.
//
// # In-memory sessions
//
// NewMemMapper binds the same mapper to an in-memory block store. It backs
// tests, and it is the natural target when importing a CAR archive without a
// daemon.
package store
