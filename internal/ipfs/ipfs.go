package ipfs

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/cache"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/uri"
)

// Store is a content addressed document store
//
//go:generate mockgen -source=ipfs.go -destination=../mocks/ipfs.go -package=mocks -mock_names=Store=MockIPFSStore
type Store interface {
	// PinJSON stores a JSON document and returns its content address
	PinJSON(ctx context.Context, name string, doc []byte) (string, error)

	// PinFile stores a file and returns its content address
	PinFile(ctx context.Context, name string, data []byte, contentType string) (string, error)

	// Fetch returns the content stored under a content address
	Fetch(ctx context.Context, cid string) ([]byte, error)
}

// rawCIDPrefix is CIDv1, raw codec, sha2-256 multihash of 32 bytes
var rawCIDPrefix = []byte{0x01, 0x55, 0x12, 0x20}

var cidEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ComputeCID returns the CIDv1 (raw codec, sha2-256, base32) of data
func ComputeCID(data []byte) string {
	digest := sha256.Sum256(data)
	buf := make([]byte, 0, len(rawCIDPrefix)+len(digest))
	buf = append(buf, rawCIDPrefix...)
	buf = append(buf, digest[:]...)
	return "b" + strings.ToLower(cidEncoding.EncodeToString(buf))
}

func storageError(op string, err error) error {
	return domain.NewLedgerError(domain.ErrOffChainStorageFailure, op, err)
}

// localStore keeps content in a cache, addressed by the locally computed CID
type localStore struct {
	cache cache.Cache
}

// NewLocalStore creates a store for development networks that never leaves the process or Redis
func NewLocalStore(c cache.Cache) Store {
	return &localStore{cache: c}
}

func (s *localStore) PinJSON(ctx context.Context, name string, doc []byte) (string, error) {
	return s.put(ctx, "pinJSON", name, doc)
}

func (s *localStore) PinFile(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	return s.put(ctx, "pinFile", name, data)
}

func (s *localStore) put(ctx context.Context, op, name string, data []byte) (string, error) {
	cid := ComputeCID(data)
	if err := s.cache.Set(ctx, cid, data); err != nil {
		return "", storageError(op, err)
	}
	logger.DebugCtx(ctx, "Stored content locally", zap.String("name", name), zap.String("cid", cid))
	return cid, nil
}

func (s *localStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	cid, ok := uri.ExtractCID(ref)
	if !ok {
		return nil, storageError("fetch", fmt.Errorf("invalid content address %q", ref))
	}
	data, found, err := s.cache.Get(ctx, cid)
	if err != nil {
		return nil, storageError("fetch", err)
	}
	if !found {
		return nil, storageError("fetch", &NotFoundError{CID: cid})
	}
	return data, nil
}

// NotFoundError is returned when no content is stored under a CID
type NotFoundError struct {
	CID string
}

func (e *NotFoundError) Error() string {
	return "content not found: " + e.CID
}

// cachedStore is a read-through cache in front of a store.
// Content addressed documents never change so entries are never invalidated.
type cachedStore struct {
	Store
	cache cache.Cache
}

// NewCachedStore wraps a store with a read-through cache on Fetch
func NewCachedStore(store Store, c cache.Cache) Store {
	return &cachedStore{Store: store, cache: c}
}

func (s *cachedStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	cid, ok := uri.ExtractCID(ref)
	if !ok {
		return s.Store.Fetch(ctx, ref)
	}

	if data, found, err := s.cache.Get(ctx, cid); err != nil {
		logger.WarnCtx(ctx, "Failed to read metadata cache", zap.String("cid", cid), zap.Error(err))
	} else if found {
		return data, nil
	}

	data, err := s.Store.Fetch(ctx, cid)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cid, data); err != nil {
		logger.WarnCtx(ctx, "Failed to write metadata cache", zap.String("cid", cid), zap.Error(err))
	}
	return data, nil
}
