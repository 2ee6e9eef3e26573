package syncer

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainsafe/solver-middleware/pkg/retry"
	"github.com/chainsafe/solver-middleware/pkg/syncdb/dao"
)

// profitDivisor derives the solver fee from the settled amount.
var profitDivisor = big.NewInt(1000)

// reconcileOrder resolves one pending order against the gateway contract and
// writes the settlement row. The settlementDetails read is pinned to the
// head block seen at the start of the chain pass so batched reads stay
// consistent; a provider rejecting the pinned batch is retried once at the
// latest block. evt is the chain's OrderSettled log for the order, nil when
// none was emitted in the scanned range.
func (e *Engine) reconcileOrder(ctx context.Context, client ChainClient, orderID string, evt *types.Log, head uint64, logger *zap.Logger) Outcome {
	chain := client.Chain()
	hash := common.HexToHash(orderID)

	details, err := client.SettlementDetails(ctx, hash, new(big.Int).SetUint64(head))
	if err != nil && strings.Contains(err.Error(), "batch size too large") {
		logger.Warn("pinned settlementDetails read rejected, retrying at latest block",
			zap.String("order_id", orderID))
		if serr := retry.Sleep(ctx, time.Second); serr != nil {
			return Outcome{OrderID: orderID, Result: ResultFailed, Err: serr}
		}
		details, err = client.SettlementDetails(ctx, hash, nil)
	}
	if err != nil {
		return Outcome{OrderID: orderID, Result: ResultFailed, Err: err}
	}

	amount := new(big.Int).Abs(details.Amount)
	if amount.Sign() == 0 {
		// the gateway has no record for this order yet
		return Outcome{OrderID: orderID, Result: ResultSkipped}
	}
	if evt == nil {
		logger.Warn("no settlement event found for order", zap.String("order_id", orderID))
		return Outcome{OrderID: orderID, Result: ResultSkipped}
	}
	profit := new(big.Int).Quo(amount, profitDivisor)

	settledAt, err := client.BlockTime(ctx, evt.BlockNumber)
	if err != nil {
		return Outcome{OrderID: orderID, Result: ResultFailed, Err: err}
	}

	settlement := &dao.SettlementDao{
		OrderID:     orderID,
		ChainID:     chain.ChainID,
		ChainName:   chain.Name,
		Amount:      amount.String(),
		Profit:      profit.String(),
		Timestamp:   settledAt,
		BlockNumber: int64(evt.BlockNumber),
		Status:      dao.SettlementStatusCompleted,
	}
	if err := e.store.UpsertSettlement(ctx, settlement); err != nil {
		return Outcome{OrderID: orderID, Result: ResultFailed, Err: err}
	}

	logger.Debug("settlement recorded",
		zap.String("order_id", orderID),
		zap.String("amount", amount.String()),
		zap.Uint64("block", evt.BlockNumber))
	return Outcome{OrderID: orderID, Result: ResultSettled}
}

// normalizeOrderID canonicalizes an order id to lowercase 0x-prefixed 32-byte
// hex, left-padding short values.
func normalizeOrderID(id string) string {
	return common.HexToHash(id).Hex()
}
