package eth

import (
	"context"
	"fmt"
	"math/big"

	"github.com/airchains-network/devchain/fork"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
)

// Client wraps both rpc.Client and ethclient.Client for Ethereum interactions
type Client struct {
	Rpc *rpc.Client
	Eth *ethclient.Client
}

// NewClient initializes a new Ethereum client with both RPC and ethclient
func NewClient(ctx context.Context, url string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}

	return &Client{
		Rpc: rpcClient,
		Eth: ethclient.NewClient(rpcClient),
	}, nil
}

// Close releases the underlying connection
func (c *Client) Close() {
	c.Rpc.Close()
}

// ForkBlock returns block if it is set, else the current head of the remote chain
func (c *Client) ForkBlock(ctx context.Context, block *uint64) (uint64, error) {
	if block != nil {
		return *block, nil
	}
	head, err := c.Eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get remote head: %v", err)
	}
	return head, nil
}

// ForkTimestamp returns the timestamp of a remote block
func (c *Client) ForkTimestamp(ctx context.Context, block uint64) (uint64, error) {
	header, err := c.Eth.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return 0, fmt.Errorf("failed to get remote header %d: %v", block, err)
	}
	return header.Time, nil
}

// ChainID returns the chain id of the remote chain
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.Eth.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get remote chain id: %v", err)
	}
	return id.Uint64(), nil
}

// GetAccountState fetches balance, nonce and code of addr at block
func (c *Client) GetAccountState(ctx context.Context, addr common.Address, block uint64) (*fork.AccountSnapshot, error) {
	number := new(big.Int).SetUint64(block)
	var (
		balance *big.Int
		nonce   uint64
		code    []byte
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		balance, err = c.Eth.BalanceAt(ctx, addr, number)
		return err
	})
	g.Go(func() (err error) {
		nonce, err = c.Eth.NonceAt(ctx, addr, number)
		return err
	})
	g.Go(func() (err error) {
		code, err = c.Eth.CodeAt(ctx, addr, number)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	bal, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, fmt.Errorf("balance of %s overflows 256 bits", addr.Hex())
	}
	return &fork.AccountSnapshot{Balance: bal, Nonce: nonce, Code: code}, nil
}

// GetStorage fetches one storage slot of addr at block
func (c *Client) GetStorage(ctx context.Context, addr common.Address, slot common.Hash, block uint64) (common.Hash, error) {
	val, err := c.Eth.StorageAt(ctx, addr, slot, new(big.Int).SetUint64(block))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(val), nil
}

var _ fork.Remote = (*Client)(nil)
