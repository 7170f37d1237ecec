package contentstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/boxo/files"
	"github.com/ipfs/boxo/path"
	"github.com/ipfs/go-cid"
	"github.com/ipfs/kubo/client/rpc"
	"github.com/ipfs/kubo/core/coreiface/options"
	"github.com/multiformats/go-multicodec"
	"go.uber.org/zap"

	"github.com/ipfs-shipyard/go-ipldstore/pkg/cidutil"
	"github.com/ipfs-shipyard/go-ipldstore/pkg/config"
)

// NodeStore is a Store backed by a running IPFS (kubo) node. Raw and
// dag-cbor blocks go through the node's block API; dag-pb payloads are added
// as unixfs files with the configured chunker and read back with cat.
//
// Errors from the node are surfaced to the caller unchanged: an unreachable
// daemon shows up as a connection error, an unresolvable CID as the node's
// own lookup failure. Reads may optionally fall back to the node's HTTP
// gateway (Config.UseGateway).
type NodeStore struct {
	api     *rpc.HttpApi
	cfg     *config.Config
	tmo     config.Timeouts
	cache   *lru.Cache[string, []byte]
	gateway *http.Client
}

var (
	_ Store       = (*NodeStore)(nil)
	_ BulkFetcher = (*NodeStore)(nil)
	_ BlockGetter = (*NodeStore)(nil)
	_ BlockPutter = (*NodeStore)(nil)
)

// New connects a NodeStore to the node API configured in cfg. The
// configuration is validated (with defaults applied) first. Only malformed
// configuration fails here; an unreachable daemon is reported by the first
// store operation, matching how the node's own client behaves.
func New(cfg *config.Config) (*NodeStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tmo := cfg.Timeouts.WithDefaults()

	api, err := NewNodeClient(cfg.APIAddr, tmo.Dial)
	if err != nil {
		return nil, err
	}

	s := &NodeStore{
		api:     api,
		cfg:     cfg,
		tmo:     tmo,
		gateway: &http.Client{Timeout: tmo.BlockGet},
	}
	if cfg.CacheSize > 0 {
		s.cache, err = lru.New[string, []byte](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("init block cache: %w", err)
		}
	}
	return s, nil
}

// NewNodeClient constructs a kubo HTTP API client pointed at addr with the
// given client timeout.
func NewNodeClient(addr string, timeout time.Duration) (*rpc.HttpApi, error) {
	httpClient := &http.Client{Timeout: timeout}
	api, err := rpc.NewURLApiWithClient(addr, httpClient)
	if err != nil {
		return nil, fmt.Errorf("node api client for %s: %w", addr, err)
	}
	return api, nil
}

// GetRaw returns the bytes addressed by c, reading through the cache.
func (s *NodeStore) GetRaw(ctx context.Context, c cid.Cid) ([]byte, error) {
	c = cidutil.Normalize(c)
	key := c.KeyString()
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			return data, nil
		}
	}

	data, err := s.apiGet(ctx, c)
	if err != nil && s.cfg.UseGateway {
		zap.L().Warn("node api read failed, trying gateway",
			zap.String("cid", cidutil.MustFormat(c)), zap.Error(err))
		var gerr error
		data, gerr = s.gatewayGet(ctx, c)
		if gerr == nil {
			err = nil
		}
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Add(key, data)
	}
	return data, nil
}

func (s *NodeStore) apiGet(ctx context.Context, c cid.Cid) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.tmo.BlockGet)
	defer cancel()

	if cidutil.IsDagPb(c) {
		// dag-pb links are unixfs files; cat returns the assembled bytes.
		resp, err := s.api.Request("cat", cidutil.MustFormat(c)).Send(ctx)
		if err != nil {
			return nil, fmt.Errorf("cat %s: %w", cidutil.MustFormat(c), err)
		}
		defer resp.Close()
		if resp.Error != nil {
			return nil, fmt.Errorf("cat %s: %w", cidutil.MustFormat(c), resp.Error)
		}
		data, err := io.ReadAll(resp.Output)
		if err != nil {
			return nil, fmt.Errorf("cat %s: %w", cidutil.MustFormat(c), err)
		}
		return data, nil
	}

	r, err := s.api.Block().Get(ctx, path.FromCid(c))
	if err != nil {
		return nil, fmt.Errorf("block get %s: %w", cidutil.MustFormat(c), err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("block get %s: %w", cidutil.MustFormat(c), err)
	}
	return data, nil
}

func (s *NodeStore) gatewayGet(ctx context.Context, c cid.Cid) ([]byte, error) {
	u := strings.TrimRight(s.cfg.GatewayAddr, "/") + "/ipfs/" + cidutil.MustFormat(c)
	if !cidutil.IsDagPb(c) {
		u += "?format=raw"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.gateway.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway get %s: %w", cidutil.MustFormat(c), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway get %s: status %d", cidutil.MustFormat(c), resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// PutRaw stores data on the node under the given codec and returns its CID.
// The dag-pb codec routes through unixfs add with the configured chunker;
// anything else is written as a single block.
func (s *NodeStore) PutRaw(ctx context.Context, data []byte, codec uint64) (cid.Cid, error) {
	ctx, cancel := context.WithTimeout(ctx, s.tmo.BlockPut)
	defer cancel()

	var c cid.Cid
	switch codec {
	case uint64(multicodec.DagPb):
		p, err := s.api.Unixfs().Add(ctx, files.NewBytesFile(data),
			options.Unixfs.Chunker(s.cfg.Chunker),
			options.Unixfs.Pin(!s.cfg.NoPin))
		if err != nil {
			return cid.Undef, fmt.Errorf("unixfs add: %w", err)
		}
		c = p.RootCid()

	default:
		name := multicodec.Code(codec).String()
		stat, err := s.api.Block().Put(ctx, files.NewBytesFile(data),
			options.Block.CidCodec(name),
			options.Block.Hash(s.cfg.HashCode(), -1),
			options.Block.Pin(!s.cfg.NoPin))
		if err != nil {
			return cid.Undef, fmt.Errorf("block put (%s): %w", name, err)
		}
		c = stat.Path().RootCid()

		if s.cache != nil {
			s.cache.Add(cidutil.Normalize(c).KeyString(), data)
		}
	}

	c = cidutil.Normalize(c)
	zap.L().Debug("stored block",
		zap.String("cid", cidutil.MustFormat(c)),
		zap.String("codec", cidutil.CodecName(c)),
		zap.Int("size", len(data)))
	return c, nil
}

// GetBlock returns the exact encoded block for c via the node's block API,
// regardless of codec.
func (s *NodeStore) GetBlock(ctx context.Context, c cid.Cid) ([]byte, error) {
	c = cidutil.Normalize(c)
	ctx, cancel := context.WithTimeout(ctx, s.tmo.BlockGet)
	defer cancel()

	r, err := s.api.Block().Get(ctx, path.FromCid(c))
	if err != nil {
		return nil, fmt.Errorf("block get %s: %w", cidutil.MustFormat(c), err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("block get %s: %w", cidutil.MustFormat(c), err)
	}
	return data, nil
}

// PutBlock writes an exact encoded block addressed like an existing CID:
// same codec, same hash function, no chunker. Used when importing DAGs that
// must keep their identifiers.
func (s *NodeStore) PutBlock(ctx context.Context, data []byte, like cid.Cid) (cid.Cid, error) {
	ctx, cancel := context.WithTimeout(ctx, s.tmo.BlockPut)
	defer cancel()

	prefix := like.Prefix()
	name := multicodec.Code(prefix.Codec).String()
	stat, err := s.api.Block().Put(ctx, files.NewBytesFile(data),
		options.Block.CidCodec(name),
		options.Block.Hash(prefix.MhType, -1),
		options.Block.Pin(!s.cfg.NoPin))
	if err != nil {
		return cid.Undef, fmt.Errorf("block put (%s): %w", name, err)
	}
	return cidutil.Normalize(stat.Path().RootCid()), nil
}

// Has reports whether the node can resolve the block addressed by c. Lookup
// failures report false; transport failures are returned as errors.
func (s *NodeStore) Has(ctx context.Context, c cid.Cid) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.tmo.Resolve)
	defer cancel()

	_, err := s.api.Block().Stat(ctx, path.FromCid(cidutil.Normalize(c)))
	if err != nil {
		if isLookupError(err) {
			return false, nil
		}
		return false, fmt.Errorf("block stat %s: %w", cidutil.MustFormat(c), err)
	}
	return true, nil
}

// FetchMany retrieves blocks with bounded concurrency.
func (s *NodeStore) FetchMany(ctx context.Context, cids []cid.Cid) (map[cid.Cid][]byte, error) {
	return fetchManyConcurrent(ctx, s, cids)
}

// isLookupError distinguishes the node's "I don't have this" responses from
// transport problems. The node API reports lookup failures only as message
// text, so this is a substring check.
func isLookupError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "could not find") ||
		strings.Contains(msg, "no link named")
}
