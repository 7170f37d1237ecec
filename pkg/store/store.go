package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	"go.uber.org/zap"

	"github.com/ipfs-shipyard/go-ipldstore/pkg/cidutil"
	"github.com/ipfs-shipyard/go-ipldstore/pkg/config"
	"github.com/ipfs-shipyard/go-ipldstore/pkg/contentstore"
	"github.com/ipfs-shipyard/go-ipldstore/pkg/manifest"
)

var (
	// ErrNotFound is returned when a key is not present in the session.
	ErrNotFound = errors.New("key not found")
	// ErrNoRoot is returned by Root before the first successful Freeze or
	// SetRoot, and after any write has invalidated the frozen root.
	ErrNoRoot = errors.New("no frozen root")
)

// init configures a default global zap logger. Applications may replace it
// with zap.ReplaceGlobals(...) or SetupLogger if they need custom logging.
func init() {
	SetupLogger(false)
}

// SetupLogger installs a console logger as the global zap logger, at debug
// level when debug is set.
func SetupLogger(debug bool) {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	c := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// Mapper is a key/value adapter over a content-addressed block store. Keys
// live in a manifest tree; values live as blocks. Mutations invalidate the
// previously frozen root until Freeze is called again.
//
// The manifest is guarded by a mutex so chunk writers may run concurrently;
// block store calls happen outside the lock.
type Mapper struct {
	mu   sync.Mutex
	cs   contentstore.Store
	man  *manifest.Manifest
	root cid.Cid

	inlineLimit int
}

// NewMapper returns a mapper bound to the IPFS node configured in cfg.
func NewMapper(cfg *config.Config) (*Mapper, error) {
	cs, err := contentstore.New(cfg)
	if err != nil {
		return nil, err
	}
	return New(cs, cfg.InlineBlockLimit), nil
}

// NewMemMapper returns a mapper over an in-memory block store.
func NewMemMapper() *Mapper {
	return New(contentstore.NewMemStore(), 1<<20)
}

// New returns a mapper over an arbitrary block store. Values larger than
// inlineBlockLimit are stored through the dag-pb (chunked file) path.
func New(cs contentstore.Store, inlineBlockLimit int) *Mapper {
	return &Mapper{
		cs:          cs,
		man:         manifest.New(),
		inlineLimit: inlineBlockLimit,
	}
}

// Get returns the bytes stored under key. Inline metadata documents are
// re-serialized as JSON; chunk keys are read from the block store.
func (m *Mapper) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	v, ok := m.man.Get(key)
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	switch x := v.(type) {
	case manifest.Doc:
		data, err := json.Marshal(x.V)
		if err != nil {
			return nil, fmt.Errorf("encode inline document %s: %w", key, err)
		}
		return data, nil
	case cid.Cid:
		return m.cs.GetRaw(ctx, x)
	default:
		return nil, fmt.Errorf("key %s: unexpected manifest value %T", key, v)
	}
}

// GetMany returns the bytes for all given keys, reading linked blocks in
// bulk. Any missing key fails the whole call with ErrNotFound.
func (m *Mapper) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	keysByLink := map[cid.Cid][]string{}

	m.mu.Lock()
	for _, key := range keys {
		v, ok := m.man.Get(key)
		if !ok {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		switch x := v.(type) {
		case manifest.Doc:
			data, err := json.Marshal(x.V)
			if err != nil {
				m.mu.Unlock()
				return nil, fmt.Errorf("encode inline document %s: %w", key, err)
			}
			out[key] = data
		case cid.Cid:
			keysByLink[x] = append(keysByLink[x], key)
		}
	}
	m.mu.Unlock()

	if len(keysByLink) == 0 {
		return out, nil
	}

	links := make([]cid.Cid, 0, len(keysByLink))
	for c := range keysByLink {
		links = append(links, c)
	}
	blocks, err := contentstore.FetchMany(ctx, m.cs, links)
	if err != nil {
		return nil, err
	}
	for c, ks := range keysByLink {
		for _, key := range ks {
			out[key] = blocks[c]
		}
	}
	return out, nil
}

// Set stores value under key. Inline metadata keys must contain valid JSON;
// other values are written to the block store and linked. Any successful Set
// invalidates the frozen root.
func (m *Mapper) Set(ctx context.Context, key string, value []byte) error {
	if manifest.IsInlineKey(key) {
		var doc any
		if err := json.Unmarshal(value, &doc); err != nil {
			return fmt.Errorf("parse inline document %s: %w", key, err)
		}
		return m.setEntry(key, manifest.Doc{V: doc})
	}

	codec := uint64(multicodec.Raw)
	if m.inlineLimit > 0 && len(value) > m.inlineLimit {
		codec = uint64(multicodec.DagPb)
	}
	c, err := m.cs.PutRaw(ctx, value, codec)
	if err != nil {
		return fmt.Errorf("store value for %s: %w", key, err)
	}
	return m.setEntry(key, c)
}

func (m *Mapper) setEntry(key string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.man.Set(key, v); err != nil {
		return err
	}
	m.root = cid.Undef
	return nil
}

// Has reports whether key is present in the session.
func (m *Mapper) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.man.Get(key)
	return ok
}

// Keys returns all keys in sorted order.
func (m *Mapper) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.man.Keys()
}

// Len returns the number of keys.
func (m *Mapper) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.man.Len()
}

// Delete removes key from the session and invalidates the frozen root.
// Missing keys return ErrNotFound.
func (m *Mapper) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.man.Delete(key) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	m.root = cid.Undef
	return nil
}

// Clear resets the session to an empty key space.
func (m *Mapper) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.man = manifest.New()
	m.root = cid.Undef
}

// Freeze finalizes the session: the manifest is encoded as dag-cbor, written
// to the block store, and its CID returned. Freezing an unchanged session
// returns the cached root without another write.
func (m *Mapper) Freeze(ctx context.Context) (cid.Cid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.root.Defined() {
		return m.root, nil
	}

	data, err := m.man.Encode()
	if err != nil {
		return cid.Undef, err
	}
	c, err := m.cs.PutRaw(ctx, data, uint64(multicodec.DagCbor))
	if err != nil {
		return cid.Undef, fmt.Errorf("store root: %w", err)
	}

	m.root = c
	zap.L().Debug("froze session",
		zap.String("root", cidutil.MustFormat(c)),
		zap.Int("keys", m.man.Len()))
	return c, nil
}

// FreezeString freezes the session and returns the root in its canonical
// text form (CIDv1, base32).
func (m *Mapper) FreezeString(ctx context.Context) (string, error) {
	c, err := m.Freeze(ctx)
	if err != nil {
		return "", err
	}
	return cidutil.Format(c)
}

// Root returns the current frozen root, or ErrNoRoot when the session has
// unfrozen writes (or has never been frozen).
func (m *Mapper) Root() (cid.Cid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.root.Defined() {
		return cid.Undef, ErrNoRoot
	}
	return m.root, nil
}

// SetRoot rebinds the mapper to an existing root for reading. The root block
// must be resolvable through the underlying store; an unknown identifier
// fails with the store's lookup error and leaves the session unchanged.
func (m *Mapper) SetRoot(ctx context.Context, c cid.Cid) error {
	c = cidutil.Normalize(c)

	data, err := m.cs.GetRaw(ctx, c)
	if err != nil {
		return fmt.Errorf("resolve root %s: %w", cidutil.MustFormat(c), err)
	}
	man, err := manifest.Decode(data)
	if err != nil {
		return fmt.Errorf("root %s: %w", cidutil.MustFormat(c), err)
	}

	m.mu.Lock()
	m.man = man
	m.root = c
	m.mu.Unlock()

	zap.L().Debug("bound session to root",
		zap.String("root", cidutil.MustFormat(c)),
		zap.Int("keys", man.Len()))
	return nil
}

// SetRootString parses a root identifier in text form and calls SetRoot.
func (m *Mapper) SetRootString(ctx context.Context, s string) error {
	c, err := cidutil.Parse(s)
	if err != nil {
		return err
	}
	return m.SetRoot(ctx, c)
}

// Store exposes the underlying block store, for DAG-level operations such as
// CAR export.
func (m *Mapper) Store() contentstore.Store {
	return m.cs
}
