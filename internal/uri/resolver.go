package uri

import (
	"context"
	"fmt"

	"github.com/feral-file/batch-ledger/internal/adapter"
)

// Config holds configuration for the URI resolver
type Config struct {
	// IPFSGateways is the list of IPFS gateways, the first one is the primary gateway
	IPFSGateways []string
	// Probe makes the resolver HEAD every gateway and pick the first that answers
	Probe bool
}

// Resolver defines the interface for resolving metadata references
//
//go:generate mockgen -source=resolver.go -destination=../mocks/uri_resolver.go -package=mocks -mock_names=Resolver=MockURIResolver
type Resolver interface {
	// Resolve turns an ipfs:// URI, a gateway URL or a bare CID into a fetchable gateway URL.
	// Regular HTTP(S) URLs are returned as is.
	Resolve(ctx context.Context, uri string) (string, error)
}

type resolver struct {
	httpClient adapter.HTTPClient
	config     *Config
}

func NewResolver(httpClient adapter.HTTPClient, config *Config) Resolver {
	return &resolver{
		httpClient: httpClient,
		config:     config,
	}
}

func (r *resolver) Resolve(ctx context.Context, uri string) (string, error) {
	cid, ok := ExtractCID(uri)
	if !ok {
		if uri == "" {
			return "", fmt.Errorf("empty URI")
		}
		// Regular HTTP(S) URL
		return uri, nil
	}

	if len(r.config.IPFSGateways) == 0 {
		return "", fmt.Errorf("no IPFS gateways configured")
	}

	if !r.config.Probe {
		return GatewayURL(r.config.IPFSGateways[0], cid), nil
	}

	return FindWorkingIPFSGateway(ctx, r.httpClient, cid, r.config.IPFSGateways)
}
