// Package prices maintains a TTL-bounded cache of native-token USD prices,
// backed by an HTTP price oracle and persisted across restarts.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Oracle resolves the current USD price of an ERC-20 token.
type Oracle interface {
	TokenPrice(ctx context.Context, tokenAddress string) (float64, error)
}

// HTTPOracle queries a Moralis-compatible token price endpoint.
type HTTPOracle struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewHTTPOracle(baseURL, apiKey string) *HTTPOracle {
	return &HTTPOracle{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

func (o *HTTPOracle) TokenPrice(ctx context.Context, tokenAddress string) (float64, error) {
	url := fmt.Sprintf("%s/erc20/%s/price", o.baseURL, tokenAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("price endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded struct {
		USDPrice float64 `json:"usdPrice"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("failed to decode price response: %w", err)
	}
	return decoded.USDPrice, nil
}
