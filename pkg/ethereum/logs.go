package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// logChunkSize bounds the block range of a single eth_getLogs call when a
// provider rejects the full-range query.
const logChunkSize = 2000

// FetchSettlementLogs returns all OrderSettled logs emitted by the gateway
// in [fromBlock, head], in ascending block order. It first attempts a single
// full-range query; if the provider rejects it, the range is re-scanned in
// fixed-size chunks with per-chunk retries.
func (c *Client) FetchSettlementLogs(ctx context.Context, fromBlock, head uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{c.gateway},
		Topics:    [][]common.Hash{{OrderSettledTopic}},
	}

	logs, err := c.backend.FilterLogs(ctx, query)
	if err == nil {
		return logs, nil
	}

	c.logger.Warn("full-range log query failed, falling back to chunked scan",
		zap.Uint64("from_block", fromBlock),
		zap.Uint64("head", head),
		zap.Error(err))

	return c.fetchLogsChunked(ctx, fromBlock, head)
}

func (c *Client) fetchLogsChunked(ctx context.Context, fromBlock, head uint64) ([]types.Log, error) {
	var all []types.Log
	for start := fromBlock; start <= head; start += logChunkSize {
		end := start + logChunkSize - 1
		if end > head {
			end = head
		}

		query := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{c.gateway},
			Topics:    [][]common.Hash{{OrderSettledTopic}},
		}

		var chunk []types.Log
		err := c.policy.Do(ctx, func() error {
			var err error
			chunk, err = c.backend.FilterLogs(ctx, query)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch logs for blocks %d-%d on %s: %w", start, end, c.chain.Name, err)
		}
		all = append(all, chunk...)
	}
	return all, nil
}
