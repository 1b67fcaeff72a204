package node

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/chiral-network/chiral-network/pkg/chunkstore"
)

// ChunkProtocolID is the native chunk-transfer stream protocol. Wire
// format: requester writes a 32-byte CID, responder replies with a
// 4-byte big-endian length prefix followed by that many chunk bytes, or a
// zero length to signal "missing".
const ChunkProtocolID = "/chiral/chunk/1.0.0"

// nativeHandler implements ProtocolHandler for the Native protocol: it
// resolves providers through the DHT and fetches chunks over direct
// libp2p streams, serving its own chunks from the local store in return.
type nativeHandler struct {
	h         host.Host
	store     *chunkstore.Store
	providers func(ctx context.Context, rootCID string) ([]peer.ID, error)
	seeding   map[string]struct{}
}

func newNativeHandler(h host.Host, store *chunkstore.Store, providers func(ctx context.Context, rootCID string) ([]peer.ID, error)) *nativeHandler {
	return &nativeHandler{h: h, store: store, providers: providers, seeding: make(map[string]struct{})}
}

func (n *nativeHandler) GetProviders(ctx context.Context, rootCID string) ([]string, error) {
	ids, err := n.providers(ctx, rootCID)
	if err != nil {
		return nil, Newf(KindProviderLookupEmpty, "transfer", err, "provider lookup failed for %s", rootCID)
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out, nil
}

// FetchChunk is unused by the scheduler-driven download path (which calls
// FetchChunkFromPeer directly, since a specific peer is always chosen by
// the scheduler); it is kept to satisfy ProtocolHandler for callers that
// only know a root CID and not yet a peer.
func (n *nativeHandler) FetchChunk(ctx context.Context, rootCID string, index int) ([]byte, error) {
	return nil, Newf(KindConfigInvalid, "transfer", nil, "fetch_chunk requires peer selection; use the scheduler-driven path")
}

func (n *nativeHandler) StartSeeding(ctx context.Context, rootCID string) error {
	n.seeding[rootCID] = struct{}{}
	return nil
}

func (n *nativeHandler) StopSeeding(ctx context.Context, rootCID string) error {
	delete(n.seeding, rootCID)
	return nil
}

// FetchChunkFromPeer requests a single chunk by CID from peerID over a
// fresh stream and verifies it against the claimed CID before returning.
func FetchChunkFromPeer(ctx context.Context, h host.Host, peerID peer.ID, c chunkstore.CID) ([]byte, error) {
	s, err := h.NewStream(ctx, peerID, ChunkProtocolID)
	if err != nil {
		return nil, Newf(KindPeerUnavailable, "transfer", err, "failed to open stream to %s", peerID)
	}
	defer s.Close()

	if _, err := s.Write(c[:]); err != nil {
		return nil, Newf(KindNetworkTimeout, "transfer", err, "failed to write chunk request")
	}

	r := bufio.NewReader(s)
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, Newf(KindNetworkTimeout, "transfer", err, "failed to read chunk length")
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, Newf(KindChunkMissing, "transfer", nil, "peer %s has no chunk %s", peerID, c)
	}
	if n > chunkstore.MaxChunkSize {
		return nil, Newf(KindIntegrityMismatch, "transfer", nil, "peer %s advertised oversized chunk", peerID)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, Newf(KindNetworkTimeout, "transfer", err, "failed to read chunk body")
	}
	if chunkstore.Sum(data) != c {
		return nil, Newf(KindIntegrityMismatch, "transfer", nil, "chunk %s failed verification from %s", c, peerID)
	}
	return data, nil
}

// registerChunkHandler installs the inbound stream handler that serves
// chunks from the local store to requesting peers.
func registerChunkHandler(h host.Host, store *chunkstore.Store) {
	h.SetStreamHandler(ChunkProtocolID, func(s network.Stream) {
		defer s.Close()
		var raw [32]byte
		if _, err := io.ReadFull(s, raw[:]); err != nil {
			return
		}
		var c chunkstore.CID
		copy(c[:], raw[:])

		data, err := store.Get(c)
		var lenBuf [4]byte
		if err != nil {
			binary.BigEndian.PutUint32(lenBuf[:], 0)
			s.Write(lenBuf[:])
			return
		}
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
		if _, err := s.Write(lenBuf[:]); err != nil {
			return
		}
		s.Write(data)
	})
}
