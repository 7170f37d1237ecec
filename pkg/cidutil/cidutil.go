// Package cidutil handles the text form of content identifiers: sanitizing
// user-supplied strings, parsing, and normalizing to the CIDv1 base32
// representation used throughout the store.
package cidutil

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
)

const (
	// IpfsPrefix is the URI scheme prefix recognized for IPFS content.
	IpfsPrefix = "ipfs://"
	// IpfsPath is the gateway-style path prefix recognized for IPFS content.
	IpfsPath = "/ipfs/"
)

var nonBase = regexp.MustCompile("[^a-zA-Z0-9=]")

// Sanitize strips known URI scheme prefixes and any non-alphanumeric
// characters (except '=') from the supplied identifier to produce a clean
// CID string suitable for parsing.
func Sanitize(s string) string {
	s = strings.Replace(s, IpfsPrefix, "", -1)
	s = strings.Replace(s, IpfsPath, "", -1)
	return nonBase.ReplaceAllString(s, "")
}

// Parse sanitizes and decodes a CID from its text form.
func Parse(s string) (cid.Cid, error) {
	c, err := cid.Parse(Sanitize(s))
	if err != nil {
		return cid.Undef, fmt.Errorf("parse cid %q: %w", s, err)
	}
	return c, nil
}

// Normalize converts a CID to version 1. Its text form then defaults to the
// lowercase base32 multibase ("b..."), which is what Freeze reports and what
// the store uses as map keys.
func Normalize(c cid.Cid) cid.Cid {
	if c.Version() == 1 {
		return c
	}
	return cid.NewCidV1(c.Type(), c.Hash())
}

// Format returns the canonical display string for a CID: version 1,
// lowercase base32.
func Format(c cid.Cid) (string, error) {
	return Normalize(c).StringOfBase(multibase.Base32)
}

// MustFormat is Format for CIDs already known to be valid, such as those
// produced by the store itself.
func MustFormat(c cid.Cid) string {
	s, err := Format(c)
	if err != nil {
		panic(err)
	}
	return s
}

// Sum builds a CIDv1 for data using the given multihash function and codec.
func Sum(data []byte, mhCode uint64, codec uint64) (cid.Cid, error) {
	h, err := mh.Sum(data, mhCode, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hash data: %w", err)
	}
	return cid.NewCidV1(codec, h), nil
}

// IsRaw reports whether the CID addresses a raw block.
func IsRaw(c cid.Cid) bool {
	return c.Prefix().Codec == uint64(multicodec.Raw)
}

// IsDagCbor reports whether the CID addresses a dag-cbor node.
func IsDagCbor(c cid.Cid) bool {
	return c.Prefix().Codec == uint64(multicodec.DagCbor)
}

// IsDagPb reports whether the CID addresses a dag-pb (unixfs) node.
func IsDagPb(c cid.Cid) bool {
	return c.Prefix().Codec == uint64(multicodec.DagPb)
}

// CodecName returns the registered name of the CID's codec, or its numeric
// form when unregistered.
func CodecName(c cid.Cid) string {
	code := multicodec.Code(c.Prefix().Codec)
	return code.String()
}
