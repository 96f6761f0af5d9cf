package contentstore

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"certvault/internal/certificate/models"
	"certvault/pkg/platform/sentinel"
)

// InMemoryStore keys documents by the CIDv0 of their raw bytes. It also
// serves GET /{address} so it can stand in for a gateway.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[models.ContentAddress][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[models.ContentAddress][]byte)}
}

// AddressOf computes the CIDv0 of doc.
func AddressOf(doc []byte) (models.ContentAddress, error) {
	mh, err := multihash.Sum(doc, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return models.ContentAddress(cid.NewCidV0(mh).String()), nil
}

func (s *InMemoryStore) Put(ctx context.Context, doc []byte, _ string) (models.ContentAddress, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	addr, err := AddressOf(doc)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[addr] = append([]byte(nil), doc...)
	return addr, nil
}

func (s *InMemoryStore) Get(_ context.Context, addr models.ContentAddress) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

// ServeHTTP answers GET {prefix}/{address} with the stored bytes.
func (s *InMemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	addr := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	doc, err := s.Get(r.Context(), models.ContentAddress(addr))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(doc))
	_, _ = w.Write(doc)
}
