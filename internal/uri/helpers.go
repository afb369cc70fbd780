package uri

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/logger"
)

var (
	// CIDv0 is base58btc multihash starting with Qm; CIDv1 is lower case base32 starting with b
	cidV0Pattern = regexp.MustCompile(`^Qm[1-9A-HJ-NP-Za-km-z]{44}$`)
	cidV1Pattern = regexp.MustCompile(`^b[a-z2-7]{50,}$`)
)

// IsCID reports whether s looks like an IPFS content identifier
func IsCID(s string) bool {
	return cidV0Pattern.MatchString(s) || cidV1Pattern.MatchString(s)
}

// ExtractCID returns the content path referenced by an ipfs:// URI, a gateway URL or a bare CID.
// The path keeps any sub path after the CID.
func ExtractCID(uri string) (string, bool) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", false
	}

	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		rest = strings.TrimPrefix(rest, "ipfs/")
		return rest, rest != ""
	}

	if _, rest, ok := strings.Cut(uri, "/ipfs/"); ok {
		return rest, rest != ""
	}

	root, _, _ := strings.Cut(uri, "/")
	if IsCID(root) {
		return uri, true
	}

	return "", false
}

// GatewayURL builds {gateway}/ipfs/{cid}
func GatewayURL(gateway, cid string) string {
	return fmt.Sprintf("%s/ipfs/%s", strings.TrimRight(gateway, "/"), cid)
}

// FindWorkingIPFSGateway finds a working IPFS gateway for the given CID
// It tries all gateways in parallel and returns the first working one
func FindWorkingIPFSGateway(ctx context.Context, httpClient adapter.HTTPClient, cid string, gateways []string) (string, error) {
	if len(gateways) == 0 {
		return "", fmt.Errorf("no IPFS gateways configured")
	}

	logger.InfoCtx(ctx, "Finding working IPFS gateway", zap.String("cid", cid), zap.Int("gateways", len(gateways)))

	type result struct {
		url string
		err error
	}

	resultCh := make(chan result, len(gateways))
	var wg sync.WaitGroup

	// Test each gateway with HEAD request
	for _, gateway := range gateways {
		wg.Add(1)
		go func(gw string) {
			defer wg.Done()

			url := GatewayURL(gw, cid)
			resp, err := httpClient.Head(ctx, url)
			if err != nil {
				resultCh <- result{err: err}
				return
			}
			if err := resp.Body.Close(); err != nil {
				logger.WarnCtx(ctx, "failed to close response body", zap.Error(err), zap.String("url", url))
			}

			if resp.StatusCode == http.StatusOK {
				resultCh <- result{url: url}
			} else {
				resultCh <- result{err: fmt.Errorf("gateway returned status %d", resp.StatusCode)}
			}
		}(gateway)
	}

	// Wait for all goroutines in a separate goroutine
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Return the first successful result
	for res := range resultCh {
		if res.err == nil {
			logger.InfoCtx(ctx, "Found working IPFS gateway", zap.String("url", res.url))
			return res.url, nil
		}
	}

	return "", fmt.Errorf("no working IPFS gateway found for CID: %s", cid)
}
