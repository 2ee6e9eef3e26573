// Package orderfill queries the order-fill contract on the settlement hub
// for the full set of orders filled by the solver.
package orderfill

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/solver-middleware/pkg/config"
	"github.com/chainsafe/solver-middleware/pkg/retry"
)

// Order is one fill recorded by the contract. OrderID is hex as returned by
// the contract, SourceDomain is the chain the order settles on.
type Order struct {
	OrderID      string `json:"order_id"`
	Filler       string `json:"filler"`
	SourceDomain uint32 `json:"source_domain"`
}

type smartQuery struct {
	OrderFillsByFiller orderFillsByFiller `json:"order_fills_by_filler"`
}

type orderFillsByFiller struct {
	Filler     string `json:"filler"`
	StartAfter string `json:"start_after,omitempty"`
	Limit      int    `json:"limit"`
}

type smartQueryResponse struct {
	Data []Order `json:"data"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	contract   string
	filler     string
	pageLimit  int
	pageDelay  time.Duration
	logger     *zap.Logger
}

func NewClient(cfg config.OrderFillConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.BaseURL,
		contract:   cfg.Contract,
		filler:     cfg.Filler,
		pageLimit:  cfg.PageLimit,
		pageDelay:  cfg.PageDelay,
		logger:     logger,
	}
}

// FetchOrders pages through all fills by the configured filler, keyed by the
// last order id of each page. Pagination stops on the first short or empty
// page. Any page failure fails the whole fetch; callers must not act on a
// partial order set.
func (c *Client) FetchOrders(ctx context.Context) ([]Order, error) {
	var (
		orders     []Order
		startAfter string
	)

	for page := 1; ; page++ {
		batch, err := c.fetchPage(ctx, startAfter)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch order page %d: %w", page, err)
		}

		orders = append(orders, batch...)
		if len(batch) < c.pageLimit {
			break
		}

		startAfter = batch[len(batch)-1].OrderID
		if err := retry.Sleep(ctx, c.pageDelay); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("fetched order fills", zap.Int("count", len(orders)))
	return orders, nil
}

func (c *Client) fetchPage(ctx context.Context, startAfter string) ([]Order, error) {
	query := smartQuery{
		OrderFillsByFiller: orderFillsByFiller{
			Filler:     c.filler,
			StartAfter: startAfter,
			Limit:      c.pageLimit,
		},
	}
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal smart query: %w", err)
	}

	url := fmt.Sprintf("%s/cosmwasm/wasm/v1/contract/%s/smart/%s",
		c.baseURL, c.contract, base64.StdEncoding.EncodeToString(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var decoded smartQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return decoded.Data, nil
}
