package polymarket

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// NonceClient resolves a wallet's on-chain transaction count from a Polygon
// RPC endpoint. The insider scorer uses the nonce as part of its wallet-age
// signal: a proxy wallet with a handful of transactions is a fresh account.
type NonceClient struct {
	client *ethclient.Client
}

// DialNonceClient connects to the given Polygon RPC URL.
func DialNonceClient(ctx context.Context, rpcURL string) (*NonceClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("polymarket/rpc: dial %s: %w", rpcURL, err)
	}
	return &NonceClient{client: client}, nil
}

// TransactionCount returns the wallet's nonce at the latest block.
func (n *NonceClient) TransactionCount(ctx context.Context, address string) (uint64, error) {
	nonce, err := n.client.NonceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, fmt.Errorf("polymarket/rpc: nonce for %s: %w", address, err)
	}
	return nonce, nil
}

// Close releases the RPC connection.
func (n *NonceClient) Close() {
	n.client.Close()
}
