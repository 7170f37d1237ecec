package store

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/ipfs-shipyard/go-ipldstore/pkg/contentstore"
)

// jsonEqual compares two JSON payloads as values, ignoring key order.
func jsonEqual(t *testing.T, a, b []byte) bool {
	t.Helper()
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		t.Fatalf("unmarshal %q: %v", a, err)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		t.Fatalf("unmarshal %q: %v", b, err)
	}
	return reflect.DeepEqual(av, bv)
}

// recordingStore remembers the codec each value was written with.
type recordingStore struct {
	*contentstore.MemStore
	codecs map[string]uint64
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		MemStore: contentstore.NewMemStore(),
		codecs:   map[string]uint64{},
	}
}

func (r *recordingStore) PutRaw(ctx context.Context, data []byte, codec uint64) (cid.Cid, error) {
	r.codecs[string(data)] = codec
	return r.MemStore.PutRaw(ctx, data, codec)
}
