package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/uri"
)

// PinataConfig holds the configuration of a Pinata compatible pinning service
type PinataConfig struct {
	APIURL string // e.g. https://api.pinata.cloud
	JWT    string
}

type pinataPinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinataMetadata struct {
	Name string `json:"name,omitempty"`
}

type pinataOptions struct {
	CIDVersion int `json:"cidVersion"`
}

type pinJSONRequest struct {
	PinataContent  json.RawMessage `json:"pinataContent"`
	PinataMetadata pinataMetadata  `json:"pinataMetadata"`
	PinataOptions  pinataOptions   `json:"pinataOptions"`
}

type pinataStore struct {
	cfg        PinataConfig
	httpClient adapter.HTTPClient
	json       adapter.JSON
	resolver   uri.Resolver
}

// NewPinataStore creates a store pinning through the Pinata API and fetching through IPFS gateways
func NewPinataStore(cfg PinataConfig, httpClient adapter.HTTPClient, jsonAdapter adapter.JSON, resolver uri.Resolver) Store {
	if cfg.APIURL == "" {
		cfg.APIURL = domain.DEFAULT_PINNING_API
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &pinataStore{
		cfg:        cfg,
		httpClient: httpClient,
		json:       jsonAdapter,
		resolver:   resolver,
	}
}

func (s *pinataStore) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.cfg.JWT}
}

func (s *pinataStore) PinJSON(ctx context.Context, name string, doc []byte) (string, error) {
	if !json.Valid(doc) {
		return "", storageError("pinJSON", errors.New("document is not valid JSON"))
	}

	body, err := s.json.Marshal(pinJSONRequest{
		PinataContent:  doc,
		PinataMetadata: pinataMetadata{Name: name},
		PinataOptions:  pinataOptions{CIDVersion: 1},
	})
	if err != nil {
		return "", storageError("pinJSON", fmt.Errorf("failed to marshal pin request: %w", err))
	}

	resp, err := s.httpClient.Post(ctx, s.cfg.APIURL+"/pinning/pinJSONToIPFS", "application/json", body, s.headers())
	if err != nil {
		return "", storageError("pinJSON", err)
	}

	return s.parsePinResponse(ctx, "pinJSON", name, resp)
}

func (s *pinataStore) PinFile(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return "", storageError("pinFile", fmt.Errorf("failed to create file part: %w", err))
	}
	if _, err := part.Write(data); err != nil {
		return "", storageError("pinFile", fmt.Errorf("failed to write file part: %w", err))
	}

	meta, err := s.json.Marshal(pinataMetadata{Name: name})
	if err != nil {
		return "", storageError("pinFile", err)
	}
	if err := w.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", storageError("pinFile", err)
	}
	opts, err := s.json.Marshal(pinataOptions{CIDVersion: 1})
	if err != nil {
		return "", storageError("pinFile", err)
	}
	if err := w.WriteField("pinataOptions", string(opts)); err != nil {
		return "", storageError("pinFile", err)
	}
	if err := w.Close(); err != nil {
		return "", storageError("pinFile", err)
	}

	resp, err := s.httpClient.Post(ctx, s.cfg.APIURL+"/pinning/pinFileToIPFS", w.FormDataContentType(), buf.Bytes(), s.headers())
	if err != nil {
		return "", storageError("pinFile", err)
	}

	return s.parsePinResponse(ctx, "pinFile", name, resp)
}

func (s *pinataStore) parsePinResponse(ctx context.Context, op, name string, resp []byte) (string, error) {
	var pinned pinataPinResponse
	if err := s.json.Unmarshal(resp, &pinned); err != nil {
		return "", storageError(op, fmt.Errorf("failed to parse pin response: %w", err))
	}
	if pinned.IpfsHash == "" {
		return "", storageError(op, errors.New("pin response has no content address"))
	}

	logger.InfoCtx(ctx, "Pinned content",
		zap.String("name", name),
		zap.String("cid", pinned.IpfsHash),
		zap.Int64("size", pinned.PinSize))

	return pinned.IpfsHash, nil
}

func (s *pinataStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	url, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, storageError("fetch", err)
	}

	data, err := s.httpClient.GetBytes(ctx, url)
	if err != nil {
		return nil, storageError("fetch", fmt.Errorf("failed to fetch %s: %w", url, err))
	}
	return data, nil
}
