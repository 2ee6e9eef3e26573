package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const gatewayABIJSON = `[
	{
		"inputs": [{"internalType": "bytes32", "name": "orderID", "type": "bytes32"}],
		"name": "settlementDetails",
		"outputs": [
			{"internalType": "bytes32", "name": "sender", "type": "bytes32"},
			{"internalType": "uint256", "name": "nonce", "type": "uint256"},
			{"internalType": "uint32", "name": "destinationDomain", "type": "uint32"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [{"indexed": true, "internalType": "bytes32", "name": "orderID", "type": "bytes32"}],
		"name": "OrderSettled",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [{"indexed": true, "internalType": "bytes32", "name": "orderID", "type": "bytes32"}],
		"name": "OrderRefunded",
		"type": "event"
	}
]`

var (
	gatewayABI = mustParseABI(gatewayABIJSON)

	// OrderSettledTopic is the topic0 of the gateway's OrderSettled event.
	OrderSettledTopic = crypto.Keccak256Hash([]byte("OrderSettled(bytes32)"))
	// OrderRefundedTopic is the topic0 of the gateway's OrderRefunded event.
	OrderRefundedTopic = crypto.Keccak256Hash([]byte("OrderRefunded(bytes32)"))
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid gateway abi: %v", err))
	}
	return parsed
}

// SettlementDetails is the gateway's on-chain record of a settled order.
type SettlementDetails struct {
	Sender            [32]byte
	Nonce             *big.Int
	DestinationDomain uint32
	Amount            *big.Int
}

// SettlementDetails calls the gateway's settlementDetails view for an order.
// A nil blockNumber queries the latest block; reconciliation pins a block to
// keep batched reads consistent.
func (c *Client) SettlementDetails(ctx context.Context, orderID common.Hash, blockNumber *big.Int) (*SettlementDetails, error) {
	input, err := gatewayABI.Pack("settlementDetails", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack settlementDetails call: %w", err)
	}

	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &c.gateway,
		Data: input,
	}, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("settlementDetails call failed on %s: %w", c.chain.Name, err)
	}

	results, err := gatewayABI.Unpack("settlementDetails", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack settlementDetails result: %w", err)
	}
	if len(results) != 4 {
		return nil, fmt.Errorf("unexpected settlementDetails result arity: %d", len(results))
	}

	details := &SettlementDetails{}
	var ok bool
	if details.Sender, ok = results[0].([32]byte); !ok {
		return nil, fmt.Errorf("unexpected sender type %T", results[0])
	}
	if details.Nonce, ok = results[1].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected nonce type %T", results[1])
	}
	if details.DestinationDomain, ok = results[2].(uint32); !ok {
		return nil, fmt.Errorf("unexpected destinationDomain type %T", results[2])
	}
	if details.Amount, ok = results[3].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected amount type %T", results[3])
	}
	return details, nil
}
