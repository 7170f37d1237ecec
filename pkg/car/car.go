// Package car moves frozen DAGs in and out of CAR (content-addressed
// archive) files, the interchange format understood by IPFS tooling. Export
// walks every link reachable from a root and streams the blocks; Import puts
// archived blocks back into a store, preserving their identifiers.
package car

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	carv2 "github.com/ipld/go-car/v2"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/linking"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	selectorparse "github.com/ipld/go-ipld-prime/traversal/selector/parse"
	"go.uber.org/zap"

	"github.com/ipfs/go-cid"

	// Register the codecs the traversal needs to decode intermediate nodes.
	_ "github.com/ipld/go-codec-dagpb"
	_ "github.com/ipld/go-ipld-prime/codec/dagcbor"
	_ "github.com/ipld/go-ipld-prime/codec/raw"

	"github.com/ipfs-shipyard/go-ipldstore/pkg/cidutil"
	"github.com/ipfs-shipyard/go-ipldstore/pkg/contentstore"
)

// Export writes a CARv1 archive of everything reachable from root to w and
// returns the number of bytes written. Each block appears once, in traversal
// order, root first.
func Export(ctx context.Context, cs contentstore.Store, root cid.Cid, w io.Writer) (uint64, error) {
	root = cidutil.Normalize(root)

	lsys := cidlink.DefaultLinkSystem()
	lsys.TrustedStorage = true
	lsys.StorageReadOpener = func(lc linking.LinkContext, lnk datamodel.Link) (io.Reader, error) {
		cl, ok := lnk.(cidlink.Link)
		if !ok {
			return nil, fmt.Errorf("unsupported link type %T", lnk)
		}
		data, err := contentstore.GetBlock(lc.Ctx, cs, cl.Cid)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}

	n, err := carv2.TraverseV1(ctx, &lsys, root, selectorparse.CommonSelector_ExploreAllRecursively, w)
	if err != nil {
		return n, fmt.Errorf("export %s: %w", cidutil.MustFormat(root), err)
	}

	zap.L().Debug("exported dag",
		zap.String("root", cidutil.MustFormat(root)),
		zap.Uint64("bytes", n))
	return n, nil
}

// Import reads a CARv1 (or the v1 payload of a CARv2) archive from r, puts
// every block into cs, and returns the archive's roots, normalized.
func Import(ctx context.Context, cs contentstore.Store, r io.Reader) ([]cid.Cid, error) {
	br, err := carv2.NewBlockReader(r)
	if err != nil {
		return nil, fmt.Errorf("read car header: %w", err)
	}

	blocks := 0
	for {
		bl, err := br.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read car block: %w", err)
		}

		got, err := contentstore.PutBlock(ctx, cs, bl.RawData(), bl.Cid())
		if err != nil {
			return nil, fmt.Errorf("import block %s: %w", bl.Cid(), err)
		}
		if !cidutil.Normalize(got).Equals(cidutil.Normalize(bl.Cid())) {
			return nil, fmt.Errorf("import block %s: store rewrote identifier to %s",
				bl.Cid(), got)
		}
		blocks++
	}

	roots := make([]cid.Cid, 0, len(br.Roots))
	for _, c := range br.Roots {
		roots = append(roots, cidutil.Normalize(c))
	}

	zap.L().Debug("imported car", zap.Int("blocks", blocks), zap.Int("roots", len(roots)))
	return roots, nil
}
