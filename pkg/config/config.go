// Package config defines the runtime configuration for the store, including
// the IPFS node API endpoint, the HTTP gateway used for fallback reads,
// content-addressing defaults (hash function, chunker, pinning) and operation
// timeouts. It also provides validation and defaulting helpers.
package config

import (
	"fmt"
	"time"

	mh "github.com/multiformats/go-multihash"
)

// Config holds all settings required to bind a mapper to a running IPFS node.
// Use Validate to fill implicit defaults and to check for malformed fields.
type Config struct {
	// APIAddr is the HTTP API endpoint of the local IPFS (kubo) node.
	// Default: http://127.0.0.1:5001
	APIAddr string `json:"api_addr" yaml:"api_addr"`
	// GatewayAddr is the HTTP gateway of the node, used for fallback reads
	// when UseGateway is set. Default: http://127.0.0.1:8080
	GatewayAddr string `json:"gateway_addr" yaml:"gateway_addr"`
	// UseGateway enables falling back to the gateway when a read through the
	// node API fails.
	UseGateway bool `json:"use_gateway" yaml:"use_gateway"`
	// Chunker is the chunking strategy passed to the node for values large
	// enough to be stored as unixfs files. Default: size-262144
	Chunker string `json:"chunker" yaml:"chunker"`
	// Hash names the multihash function used for new blocks.
	// Default: sha2-256
	Hash string `json:"hash" yaml:"hash"`
	// NoPin disables pinning of written blocks and frozen roots.
	NoPin bool `json:"no_pin" yaml:"no_pin"`
	// InlineBlockLimit is the largest value, in bytes, stored as a single raw
	// block; larger values go through the node's chunker as unixfs files.
	// Default: 1 MiB.
	InlineBlockLimit int `json:"inline_block_limit" yaml:"inline_block_limit"`
	// CacheSize is the number of blocks kept in the read-through cache.
	// Default: 256. Set negative to disable caching.
	CacheSize int `json:"cache_size" yaml:"cache_size"`
	// Debug enables verbose logging.
	Debug bool `json:"debug" yaml:"debug"`
	// Timeouts configures per-operation deadlines. See Timeouts.WithDefaults.
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts"`
}

// Timeouts controls store operation deadlines.
// Zero values will be replaced by sane defaults in WithDefaults.
type Timeouts struct {
	Dial     time.Duration // HTTP client timeout for node API calls
	BlockGet time.Duration // single block/file read
	BlockPut time.Duration // single block/file write
	Resolve  time.Duration // root resolution on SetRoot
	Export   time.Duration // full DAG export
}

// Validate normalizes the configuration by applying implicit defaults for
// APIAddr, GatewayAddr, Chunker, Hash, InlineBlockLimit and CacheSize, and
// verifies that Hash names a known multihash function.
func (c *Config) Validate() error {
	if c.APIAddr == "" {
		c.APIAddr = "http://127.0.0.1:5001"
	}

	if c.GatewayAddr == "" {
		c.GatewayAddr = "http://127.0.0.1:8080"
	}

	if c.Chunker == "" {
		c.Chunker = "size-262144"
	}

	if c.Hash == "" {
		c.Hash = "sha2-256"
	}
	if _, ok := mh.Names[c.Hash]; !ok {
		return fmt.Errorf("unknown multihash function %q", c.Hash)
	}

	if c.InlineBlockLimit == 0 {
		c.InlineBlockLimit = 1 << 20
	}

	if c.CacheSize == 0 {
		c.CacheSize = 256
	}

	return nil
}

// HashCode returns the multihash code for the configured Hash name.
// Call Validate first; unknown names resolve to sha2-256.
func (c *Config) HashCode() uint64 {
	if code, ok := mh.Names[c.Hash]; ok {
		return code
	}
	return mh.SHA2_256
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	Dial:     30s
//	BlockGet: 60s
//	BlockPut: 60s
//	Resolve:  30s
//	Export:   300s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.Dial == 0 {
		tt.Dial = 30 * time.Second
	}
	if tt.BlockGet == 0 {
		tt.BlockGet = 60 * time.Second
	}
	if tt.BlockPut == 0 {
		tt.BlockPut = 60 * time.Second
	}
	if tt.Resolve == 0 {
		tt.Resolve = 30 * time.Second
	}
	if tt.Export == 0 {
		tt.Export = 300 * time.Second
	}
	return tt
}
