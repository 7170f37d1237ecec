package config

import (
	"testing"
	"time"

	mh "github.com/multiformats/go-multihash"
)

// TestConfigValidate_AppliesDefaults verifies that Validate applies default
// values for APIAddr, GatewayAddr, Chunker, Hash and the size limits when they
// are not explicitly set.
func TestConfigValidate_AppliesDefaults(t *testing.T) {
	cfg := &Config{}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	if cfg.APIAddr != "http://127.0.0.1:5001" {
		t.Fatalf("unexpected APIAddr: %s", cfg.APIAddr)
	}
	if cfg.GatewayAddr != "http://127.0.0.1:8080" {
		t.Fatalf("unexpected GatewayAddr: %s", cfg.GatewayAddr)
	}
	if cfg.Chunker != "size-262144" {
		t.Fatalf("unexpected Chunker: %s", cfg.Chunker)
	}
	if cfg.Hash != "sha2-256" {
		t.Fatalf("unexpected Hash: %s", cfg.Hash)
	}
	if cfg.InlineBlockLimit != 1<<20 {
		t.Fatalf("unexpected InlineBlockLimit: %d", cfg.InlineBlockLimit)
	}
	if cfg.CacheSize != 256 {
		t.Fatalf("unexpected CacheSize: %d", cfg.CacheSize)
	}
}

// TestConfigValidate_RejectsUnknownHash verifies that Validate returns an
// error when Hash does not name a known multihash function.
func TestConfigValidate_RejectsUnknownHash(t *testing.T) {
	cfg := &Config{Hash: "sha0-999"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown hash function")
	}
}

// TestConfigValidate_KeepsExplicitValues verifies that explicitly set fields
// survive Validate.
func TestConfigValidate_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		APIAddr:          "http://10.0.0.1:5001",
		GatewayAddr:      "http://10.0.0.1:8080",
		Chunker:          "size-1024",
		Hash:             "blake3",
		InlineBlockLimit: 4096,
		CacheSize:        -1,
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	if cfg.APIAddr != "http://10.0.0.1:5001" {
		t.Fatalf("APIAddr was overwritten: %s", cfg.APIAddr)
	}
	if cfg.Chunker != "size-1024" {
		t.Fatalf("Chunker was overwritten: %s", cfg.Chunker)
	}
	if cfg.Hash != "blake3" {
		t.Fatalf("Hash was overwritten: %s", cfg.Hash)
	}
	if cfg.CacheSize != -1 {
		t.Fatalf("CacheSize was overwritten: %d", cfg.CacheSize)
	}
}

// TestConfigHashCode verifies the multihash code lookup.
func TestConfigHashCode(t *testing.T) {
	cfg := &Config{Hash: "sha2-256"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if cfg.HashCode() != mh.SHA2_256 {
		t.Fatalf("unexpected hash code: %d", cfg.HashCode())
	}

	// Unknown names resolve to sha2-256 rather than producing invalid CIDs.
	cfg.Hash = "not-a-hash"
	if cfg.HashCode() != mh.SHA2_256 {
		t.Fatalf("unexpected fallback hash code: %d", cfg.HashCode())
	}
}

// TestTimeoutsWithDefaults verifies zero values are replaced and explicit
// values are kept.
func TestTimeoutsWithDefaults(t *testing.T) {
	tt := Timeouts{BlockGet: 2 * time.Second}.WithDefaults()

	if tt.BlockGet != 2*time.Second {
		t.Fatalf("explicit BlockGet was overwritten: %v", tt.BlockGet)
	}
	if tt.Dial != 30*time.Second {
		t.Fatalf("unexpected Dial default: %v", tt.Dial)
	}
	if tt.BlockPut != 60*time.Second {
		t.Fatalf("unexpected BlockPut default: %v", tt.BlockPut)
	}
	if tt.Resolve != 30*time.Second {
		t.Fatalf("unexpected Resolve default: %v", tt.Resolve)
	}
	if tt.Export != 300*time.Second {
		t.Fatalf("unexpected Export default: %v", tt.Export)
	}
}
