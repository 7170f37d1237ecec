// Package manifest implements the root node of a written key space: a nested
// dag-cbor map mirroring the key hierarchy, with chunk payloads as CID links
// and known metadata documents embedded inline. Encoding is canonical (sorted
// keys, whole numbers as integers), so equal content always produces equal
// bytes and therefore an equal root CID.
package manifest

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	basicnode "github.com/ipld/go-ipld-prime/node/basic"
)

// Sep separates key path segments.
const Sep = "/"

// inlineKeys are the metadata documents stored inline in the manifest rather
// than as separate blocks. They are small, read on every open, and keeping
// them in the root makes a frozen dataset self-describing.
var inlineKeys = map[string]struct{}{
	".zarray":    {},
	".zgroup":    {},
	".zattrs":    {},
	".zmetadata": {},
}

// IsInlineKey reports whether the final segment of key names an inline
// metadata document.
func IsInlineKey(key string) bool {
	parts := strings.Split(key, Sep)
	_, ok := inlineKeys[parts[len(parts)-1]]
	return ok
}

// Doc wraps an inline document (a JSON-decoded value) stored in the manifest.
type Doc struct {
	V any
}

// Manifest is the mutable key tree for one write or read session. It is not
// safe for concurrent use; the mapper serializes access.
type Manifest struct {
	top map[string]any // interior: map[string]any; leaves: cid.Cid or Doc
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{top: map[string]any{}}
}

// Set associates key with a value: a cid.Cid link or a Doc. Interior path
// segments are created as needed. Setting through an existing leaf is an
// error; setting an existing key overwrites it.
func (m *Manifest) Set(key string, v any) error {
	switch v.(type) {
	case cid.Cid, Doc:
	default:
		return fmt.Errorf("manifest value for %q must be a link or an inline document", key)
	}

	parts := strings.Split(key, Sep)
	node := m.top
	for _, p := range parts[:len(parts)-1] {
		child, ok := node[p]
		if !ok {
			sub := map[string]any{}
			node[p] = sub
			node = sub
			continue
		}
		sub, ok := child.(map[string]any)
		if !ok {
			return fmt.Errorf("key %q crosses existing value at %q", key, p)
		}
		node = sub
	}

	last := parts[len(parts)-1]
	if child, ok := node[last]; ok {
		if _, isTree := child.(map[string]any); isTree {
			return fmt.Errorf("key %q names an existing prefix", key)
		}
	}
	node[last] = v
	return nil
}

// Get returns the value at key: a cid.Cid, a Doc, or ok=false.
func (m *Manifest) Get(key string) (any, bool) {
	parts := strings.Split(key, Sep)
	node := m.top
	for _, p := range parts[:len(parts)-1] {
		sub, ok := node[p].(map[string]any)
		if !ok {
			return nil, false
		}
		node = sub
	}
	v, ok := node[parts[len(parts)-1]]
	if !ok {
		return nil, false
	}
	if _, isTree := v.(map[string]any); isTree {
		return nil, false
	}
	return v, true
}

// Delete removes key, pruning interior maps left empty. It reports whether
// the key existed.
func (m *Manifest) Delete(key string) bool {
	parts := strings.Split(key, Sep)
	return deleteRec(m.top, parts)
}

func deleteRec(node map[string]any, parts []string) bool {
	if len(parts) == 1 {
		v, ok := node[parts[0]]
		if !ok {
			return false
		}
		if _, isTree := v.(map[string]any); isTree {
			return false
		}
		delete(node, parts[0])
		return true
	}

	sub, ok := node[parts[0]].(map[string]any)
	if !ok {
		return false
	}
	if !deleteRec(sub, parts[1:]) {
		return false
	}
	if len(sub) == 0 {
		delete(node, parts[0])
	}
	return true
}

// Keys returns all leaf keys in sorted order.
func (m *Manifest) Keys() []string {
	var keys []string
	walk("", m.top, func(key string, _ any) {
		keys = append(keys, key)
	})
	sort.Strings(keys)
	return keys
}

// Len returns the number of leaf keys.
func (m *Manifest) Len() int {
	n := 0
	walk("", m.top, func(string, any) { n++ })
	return n
}

// Links returns the CIDs of every linked leaf.
func (m *Manifest) Links() []cid.Cid {
	var links []cid.Cid
	walk("", m.top, func(_ string, v any) {
		if c, ok := v.(cid.Cid); ok {
			links = append(links, c)
		}
	})
	return links
}

func walk(prefix string, node map[string]any, fn func(key string, v any)) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + Sep + k
		}
		if sub, ok := v.(map[string]any); ok {
			walk(key, sub, fn)
			continue
		}
		fn(key, v)
	}
}

// Encode serializes the manifest as canonical dag-cbor.
func (m *Manifest) Encode() ([]byte, error) {
	nb := basicnode.Prototype.Map.NewBuilder()
	if err := assembleTree(nb, m.top); err != nil {
		return nil, fmt.Errorf("build manifest node: %w", err)
	}

	var buf bytes.Buffer
	if err := dagcbor.Encode(nb.Build(), &buf); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a dag-cbor manifest produced by Encode.
func Decode(data []byte) (*Manifest, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := dagcbor.Decode(nb, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	n := nb.Build()
	if n.Kind() != datamodel.Kind_Map {
		return nil, fmt.Errorf("decode manifest: root is %s, want map", n.Kind())
	}

	top, err := decodeTree(n)
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &Manifest{top: top}, nil
}

func assembleTree(na datamodel.NodeAssembler, node map[string]any) error {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ma, err := na.BeginMap(int64(len(node)))
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := ma.AssembleKey().AssignString(k); err != nil {
			return err
		}
		if err := assembleValue(ma.AssembleValue(), node[k]); err != nil {
			return err
		}
	}
	return ma.Finish()
}

func assembleValue(na datamodel.NodeAssembler, v any) error {
	switch x := v.(type) {
	case map[string]any:
		return assembleTree(na, x)
	case cid.Cid:
		return na.AssignLink(cidlink.Link{Cid: x})
	case Doc:
		return assembleDoc(na, x.V)
	default:
		return fmt.Errorf("unsupported manifest value %T", v)
	}
}

// assembleDoc encodes a JSON-decoded document. Whole float64 values encode
// as integers so re-encoding a document never depends on how JSON parsed it.
func assembleDoc(na datamodel.NodeAssembler, v any) error {
	switch x := v.(type) {
	case nil:
		return na.AssignNull()
	case bool:
		return na.AssignBool(x)
	case int64:
		return na.AssignInt(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return na.AssignInt(int64(x))
		}
		return na.AssignFloat(x)
	case string:
		return na.AssignString(x)
	case []any:
		la, err := na.BeginList(int64(len(x)))
		if err != nil {
			return err
		}
		for _, item := range x {
			if err := assembleDoc(la.AssembleValue(), item); err != nil {
				return err
			}
		}
		return la.Finish()
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		ma, err := na.BeginMap(int64(len(x)))
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := ma.AssembleKey().AssignString(k); err != nil {
				return err
			}
			if err := assembleDoc(ma.AssembleValue(), x[k]); err != nil {
				return err
			}
		}
		return ma.Finish()
	default:
		return fmt.Errorf("unsupported document value %T", v)
	}
}

func decodeTree(n datamodel.Node) (map[string]any, error) {
	out := make(map[string]any, int(n.Length()))
	it := n.MapIterator()
	for !it.Done() {
		kn, vn, err := it.Next()
		if err != nil {
			return nil, err
		}
		k, err := kn.AsString()
		if err != nil {
			return nil, err
		}

		if _, inline := inlineKeys[k]; inline {
			doc, err := decodeDoc(vn)
			if err != nil {
				return nil, err
			}
			out[k] = Doc{V: doc}
			continue
		}

		switch vn.Kind() {
		case datamodel.Kind_Map:
			sub, err := decodeTree(vn)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		case datamodel.Kind_Link:
			l, err := vn.AsLink()
			if err != nil {
				return nil, err
			}
			cl, ok := l.(cidlink.Link)
			if !ok {
				return nil, fmt.Errorf("key %q: unsupported link type %T", k, l)
			}
			out[k] = cl.Cid
		default:
			return nil, fmt.Errorf("key %q: unexpected %s node", k, vn.Kind())
		}
	}
	return out, nil
}

func decodeDoc(n datamodel.Node) (any, error) {
	switch n.Kind() {
	case datamodel.Kind_Null:
		return nil, nil
	case datamodel.Kind_Bool:
		return n.AsBool()
	case datamodel.Kind_Int:
		return n.AsInt()
	case datamodel.Kind_Float:
		return n.AsFloat()
	case datamodel.Kind_String:
		return n.AsString()
	case datamodel.Kind_List:
		out := make([]any, 0, int(n.Length()))
		it := n.ListIterator()
		for !it.Done() {
			_, vn, err := it.Next()
			if err != nil {
				return nil, err
			}
			v, err := decodeDoc(vn)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case datamodel.Kind_Map:
		out := make(map[string]any, int(n.Length()))
		it := n.MapIterator()
		for !it.Done() {
			kn, vn, err := it.Next()
			if err != nil {
				return nil, err
			}
			k, err := kn.AsString()
			if err != nil {
				return nil, err
			}
			v, err := decodeDoc(vn)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported %s node in document", n.Kind())
	}
}
