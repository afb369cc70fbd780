package metadata

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/ipfs"
	"github.com/feral-file/batch-ledger/internal/logger"
)

// Store publishes and reads batch metadata documents
//
//go:generate mockgen -source=store.go -destination=../mocks/metadata_store.go -package=mocks -mock_names=Store=MockMetadataStore
type Store interface {
	// PinImage uploads an image and returns its content address
	PinImage(ctx context.Context, name string, data []byte) (string, error)

	// Pin publishes a canonicalized document and returns its content address
	Pin(ctx context.Context, doc *BatchMetadata) (string, error)

	// Fetch reads and validates the document behind a metadata reference
	Fetch(ctx context.Context, ref string) (*BatchMetadata, error)
}

type store struct {
	ipfs ipfs.Store
	json adapter.JSON
	jcs  adapter.JCS
}

// NewStore creates a metadata store on top of a content addressed store
func NewStore(ipfsStore ipfs.Store, jsonAdapter adapter.JSON, jcsAdapter adapter.JCS) Store {
	return &store{ipfs: ipfsStore, json: jsonAdapter, jcs: jcsAdapter}
}

func (s *store) PinImage(ctx context.Context, name string, data []byte) (string, error) {
	mtype, err := DetectImageType(data)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = "image"
	}
	if !strings.HasSuffix(name, mtype.Extension()) {
		name += mtype.Extension()
	}

	cid, err := s.ipfs.PinFile(ctx, name, data, mtype.String())
	if err != nil {
		return "", err
	}
	logger.InfoCtx(ctx, "Uploaded batch image", zap.String("cid", cid), zap.String("mimeType", mtype.String()))
	return cid, nil
}

func (s *store) Pin(ctx context.Context, doc *BatchMetadata) (string, error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}

	canonical, err := Canonicalize(s.json, s.jcs, doc)
	if err != nil {
		return "", err
	}

	return s.ipfs.PinJSON(ctx, documentName(doc), canonical)
}

func (s *store) Fetch(ctx context.Context, ref string) (*BatchMetadata, error) {
	data, err := s.ipfs.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	var doc BatchMetadata
	if err := s.json.Unmarshal(data, &doc); err != nil {
		return nil, domain.NewLedgerError(domain.ErrOffChainStorageFailure, "fetchMetadata", fmt.Errorf("failed to parse metadata document: %w", err))
	}
	if err := doc.Validate(); err != nil {
		return nil, domain.NewLedgerError(domain.ErrOffChainStorageFailure, "fetchMetadata", fmt.Errorf("metadata document %s is invalid: %w", ref, err))
	}
	return &doc, nil
}

// Canonicalize serializes a document with RFC 8785 canonical JSON so equal documents hash equally
func Canonicalize(jsonAdapter adapter.JSON, jcsAdapter adapter.JCS, doc *BatchMetadata) ([]byte, error) {
	data, err := jsonAdapter.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	canonical, err := jcsAdapter.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize metadata: %w", err)
	}
	return canonical, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func documentName(doc *BatchMetadata) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(doc.Name), "-"), "-")
	if slug == "" {
		slug = "batch"
	}
	return fmt.Sprintf("%s-%d.json", slug, doc.CreatedAt.Unix())
}
