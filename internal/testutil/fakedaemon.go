// Package testutil provides an in-process fake of the subset of the IPFS
// node HTTP API the store talks to, so tests can run the real RPC client
// without a daemon.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
)

// FakeDaemon emulates a kubo node: block put/get/stat, unixfs add/cat, the
// version handshake the RPC client performs, and gateway-style /ipfs reads.
// Uploads are hashed with the real multiformats stack, so identifiers match
// what a node would produce for single-block content.
//
// Close the daemon mid-test to simulate losing the node.
type FakeDaemon struct {
	srv *httptest.Server

	mu     sync.Mutex
	blocks map[string][]byte // keyed by normalized CID text
	pins   map[string]bool
}

// NewFakeDaemon starts a fake node on a local listener.
func NewFakeDaemon() *FakeDaemon {
	d := &FakeDaemon{
		blocks: map[string][]byte{},
		pins:   map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/version", d.handleVersion)
	mux.HandleFunc("/api/v0/block/put", d.handleBlockPut)
	mux.HandleFunc("/api/v0/block/get", d.handleBlockGet)
	mux.HandleFunc("/api/v0/block/stat", d.handleBlockStat)
	mux.HandleFunc("/api/v0/add", d.handleAdd)
	mux.HandleFunc("/api/v0/cat", d.handleCat)
	mux.HandleFunc("/ipfs/", d.handleGateway)

	d.srv = httptest.NewServer(mux)
	return d
}

// URL returns the API endpoint, suitable for Config.APIAddr.
func (d *FakeDaemon) URL() string {
	return d.srv.URL
}

// GatewayURL returns the gateway endpoint, suitable for Config.GatewayAddr.
// The fake serves both surfaces from one listener.
func (d *FakeDaemon) GatewayURL() string {
	return d.srv.URL
}

// Close shuts the fake down; in-flight and later calls fail with connection
// errors, like a stopped daemon.
func (d *FakeDaemon) Close() {
	d.srv.Close()
}

// Has reports whether the daemon holds a block for c.
func (d *FakeDaemon) Has(c cid.Cid) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.blocks[normalize(c).String()]
	return ok
}

// Pinned reports whether c was pinned by a put.
func (d *FakeDaemon) Pinned(c cid.Cid) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pins[normalize(c).String()]
}

// BlockCount returns the number of stored blocks.
func (d *FakeDaemon) BlockCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.blocks)
}

// Seed stores data under the given codec without going through the API and
// returns its CID.
func (d *FakeDaemon) Seed(data []byte, codec uint64) (cid.Cid, error) {
	h, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	c := cid.NewCidV1(codec, h)

	d.mu.Lock()
	d.blocks[c.String()] = append([]byte(nil), data...)
	d.mu.Unlock()
	return c, nil
}

// Drop forgets the block for c, turning later reads into lookup failures.
func (d *FakeDaemon) Drop(c cid.Cid) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.blocks, normalize(c).String())
}

func normalize(c cid.Cid) cid.Cid {
	if c.Version() == 1 {
		return c
	}
	return cid.NewCidV1(c.Type(), c.Hash())
}

func (d *FakeDaemon) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"Version": "0.36.0"})
}

func (d *FakeDaemon) handleBlockPut(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(r)
	if err != nil {
		apiError(w, err.Error())
		return
	}

	codecName := r.URL.Query().Get("cid-codec")
	if codecName == "" {
		codecName = "raw"
	}
	var codec multicodec.Code
	if err := codec.Set(codecName); err != nil {
		apiError(w, fmt.Sprintf("unknown codec %q", codecName))
		return
	}

	hashName := r.URL.Query().Get("mhtype")
	if hashName == "" {
		hashName = "sha2-256"
	}
	hashCode, ok := mh.Names[hashName]
	if !ok {
		apiError(w, fmt.Sprintf("unknown mhtype %q", hashName))
		return
	}

	h, err := mh.Sum(data, hashCode, -1)
	if err != nil {
		apiError(w, err.Error())
		return
	}
	c := cid.NewCidV1(uint64(codec), h)

	d.mu.Lock()
	d.blocks[c.String()] = data
	if r.URL.Query().Get("pin") == "true" {
		d.pins[c.String()] = true
	}
	d.mu.Unlock()

	writeJSON(w, map[string]any{"Key": c.String(), "Size": len(data)})
}

func (d *FakeDaemon) lookup(arg string) ([]byte, cid.Cid, bool) {
	c, err := cid.Parse(arg)
	if err != nil {
		return nil, cid.Undef, false
	}
	c = normalize(c)
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.blocks[c.String()]
	return data, c, ok
}

func (d *FakeDaemon) handleBlockGet(w http.ResponseWriter, r *http.Request) {
	arg := r.URL.Query().Get("arg")
	data, _, ok := d.lookup(arg)
	if !ok {
		apiError(w, fmt.Sprintf("ipld: could not find node matching %s", arg))
		return
	}
	w.Write(data)
}

func (d *FakeDaemon) handleBlockStat(w http.ResponseWriter, r *http.Request) {
	arg := r.URL.Query().Get("arg")
	data, c, ok := d.lookup(arg)
	if !ok {
		apiError(w, fmt.Sprintf("ipld: could not find node matching %s", arg))
		return
	}
	writeJSON(w, map[string]any{"Key": c.String(), "Size": len(data)})
}

// handleAdd accepts a unixfs add. The fake has no chunker: content is stored
// as one object addressed by a dag-pb CID over the raw bytes, and cat serves
// it back verbatim. That is enough for a client that treats dag-pb content
// as opaque.
func (d *FakeDaemon) handleAdd(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(r)
	if err != nil {
		apiError(w, err.Error())
		return
	}

	h, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		apiError(w, err.Error())
		return
	}
	c := cid.NewCidV1(uint64(multicodec.DagPb), h)

	d.mu.Lock()
	d.blocks[c.String()] = data
	if r.URL.Query().Get("pin") != "false" {
		d.pins[c.String()] = true
	}
	d.mu.Unlock()

	writeJSON(w, map[string]string{
		"Name": "file",
		"Hash": c.String(),
		"Size": strconv.Itoa(len(data)),
	})
}

func (d *FakeDaemon) handleCat(w http.ResponseWriter, r *http.Request) {
	arg := r.URL.Query().Get("arg")
	data, _, ok := d.lookup(arg)
	if !ok {
		apiError(w, fmt.Sprintf("ipld: could not find node matching %s", arg))
		return
	}
	w.Write(data)
}

func (d *FakeDaemon) handleGateway(w http.ResponseWriter, r *http.Request) {
	arg := strings.TrimPrefix(r.URL.Path, "/ipfs/")
	data, _, ok := d.lookup(arg)
	if !ok {
		http.Error(w, "ipfs resolve: not found", http.StatusNotFound)
		return
	}
	w.Write(data)
}

// readUpload extracts the uploaded bytes from a request, accepting both the
// multipart encoding the RPC client uses and a plain body.
func readUpload(r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("read multipart: %w", err)
			}
			data, err := io.ReadAll(part)
			if err != nil {
				return nil, fmt.Errorf("read multipart part: %w", err)
			}
			if len(data) > 0 || part.FileName() != "" {
				return data, nil
			}
		}
		return nil, fmt.Errorf("no file in multipart upload")
	}

	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]any{
		"Message": msg,
		"Code":    0,
		"Type":    "error",
	})
}
