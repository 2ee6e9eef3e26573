// Package ethereum wraps the go-ethereum client with the gateway contract
// bindings and chunked log fetching used by the sync pipelines.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/chainsafe/solver-middleware/pkg/config"
	"github.com/chainsafe/solver-middleware/pkg/retry"
)

// Backend is the subset of the ethclient API the sync pipelines need.
type Backend interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client is a per-chain RPC client bound to one gateway contract.
type Client struct {
	backend Backend
	chain   config.ChainConfig
	gateway common.Address
	policy  retry.Policy
	logger  *zap.Logger
}

// Dial connects to the chain's RPC endpoint and returns a bound client.
func Dial(ctx context.Context, chain config.ChainConfig, logger *zap.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s rpc: %w", chain.Name, err)
	}
	return NewClient(ec, chain, logger), nil
}

// NewClient wraps an existing backend, used by Dial and by tests.
func NewClient(backend Backend, chain config.ChainConfig, logger *zap.Logger) *Client {
	return &Client{
		backend: backend,
		chain:   chain,
		gateway: common.HexToAddress(chain.GatewayContract),
		policy: retry.Policy{
			MaxAttempts: chain.RetryAttempts,
			Delay:       chain.RetryDelay,
		},
		logger: logger.With(zap.String("chain", chain.Name), zap.Int64("chain_id", chain.ChainID)),
	}
}

// Chain returns the chain configuration this client is bound to.
func (c *Client) Chain() config.ChainConfig {
	return c.chain
}

// LatestBlock returns the current head block number.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	var head uint64
	err := c.policy.Do(ctx, func() error {
		header, err := c.backend.HeaderByNumber(ctx, nil)
		if err != nil {
			return err
		}
		head = header.Number.Uint64()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block on %s: %w", c.chain.Name, err)
	}
	return head, nil
}

// BlockTime returns the timestamp of the given block.
func (c *Client) BlockTime(ctx context.Context, blockNumber uint64) (time.Time, error) {
	var ts time.Time
	err := c.policy.Do(ctx, func() error {
		header, err := c.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
		if err != nil {
			return err
		}
		ts = time.Unix(int64(header.Time), 0).UTC()
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get block %d on %s: %w", blockNumber, c.chain.Name, err)
	}
	return ts, nil
}

// Balance returns the native balance of an account at the latest block.
func (c *Client) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.policy.Do(ctx, func() error {
		var err error
		balance, err = c.backend.BalanceAt(ctx, account, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s on %s: %w", account.Hex(), c.chain.Name, err)
	}
	return balance, nil
}
