package ethereum

import (
	"context"
	"math/big"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type mockBackend struct {
	headerByNumberFunc func(ctx context.Context, number *big.Int) (*types.Header, error)
	balanceAtFunc      func(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	filterLogsFunc     func(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error)
	callContractFunc   func(ctx context.Context, call goethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

func (m *mockBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return m.headerByNumberFunc(ctx, number)
}

func (m *mockBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return m.balanceAtFunc(ctx, account, blockNumber)
}

func (m *mockBackend) FilterLogs(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error) {
	return m.filterLogsFunc(ctx, q)
}

func (m *mockBackend) CallContract(ctx context.Context, call goethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return m.callContractFunc(ctx, call, blockNumber)
}
