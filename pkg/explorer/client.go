// Package explorer sums native-token deposits to an address using an
// Etherscan-compatible transaction list API.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type txListResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type transaction struct {
	To      string `json:"to"`
	Value   string `json:"value"`
	IsError string `json:"isError"`
}

// IncomingValue sums the wei value of all successful transactions sent to
// the address within [startBlock, endBlock]. An explorer "No transactions
// found" response yields zero without error.
func (c *Client) IncomingValue(ctx context.Context, apiURL, apiKey, address string, startBlock, endBlock uint64) (*big.Int, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("startblock", strconv.FormatUint(startBlock, 10))
	params.Set("endblock", strconv.FormatUint(endBlock, 10))
	params.Set("sort", "asc")
	if apiKey != "" {
		params.Set("apikey", apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build explorer request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("explorer returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded txListResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode explorer response: %w", err)
	}

	if decoded.Status != "1" {
		// The API reports an empty result set as a non-OK status
		if strings.Contains(decoded.Message, "No transactions found") {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("explorer error: %s", decoded.Message)
	}

	var txs []transaction
	if err := json.Unmarshal(decoded.Result, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode transaction list: %w", err)
	}

	target := strings.ToLower(address)
	total := new(big.Int)
	for _, tx := range txs {
		if !strings.EqualFold(tx.To, target) || tx.IsError != "0" {
			continue
		}
		value, ok := new(big.Int).SetString(tx.Value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid transaction value %q", tx.Value)
		}
		total.Add(total, value)
	}
	return total, nil
}
