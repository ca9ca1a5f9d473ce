// Package ethrpc talks to the sale and token contracts over Ethereum JSON-RPC.
package ethrpc

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"presale/internal/platform/config"
	"presale/internal/whitelist"
)

const saleABI = `[
	{"type":"function","name":"addToWhitelist","stateMutability":"nonpayable",
	 "inputs":[{"name":"participant","type":"address"}],"outputs":[]},
	{"type":"function","name":"setTokenAllotment","stateMutability":"nonpayable",
	 "inputs":[{"name":"participant","type":"address"}],"outputs":[]},
	{"type":"function","name":"proRataShare","stateMutability":"view",
	 "inputs":[{"name":"participant","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const tokenABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

// Backend is the chain connection the client needs.
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client submits whitelist transactions from a single operator key.
type Client struct {
	sale    *bind.BoundContract
	token   *bind.BoundContract
	key     *ecdsa.PrivateKey
	chainID *big.Int
	closer  func()

	// txMu orders submissions so pending nonces are allocated sequentially.
	txMu sync.Mutex

	unitMu sync.Mutex
	unit   *big.Int
}

// Dial connects to the RPC endpoint and binds both contracts.
func Dial(ctx context.Context, cfg config.Whitelist) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	c, err := New(ctx, eth, key, cfg.SaleContract, cfg.TokenContract)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.closer = eth.Close
	return c, nil
}

// New binds the sale and token contracts on an existing backend.
func New(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, saleContract, tokenContract string) (*Client, error) {
	if !common.IsHexAddress(saleContract) {
		return nil, fmt.Errorf("invalid sale contract address %q", saleContract)
	}
	if !common.IsHexAddress(tokenContract) {
		return nil, fmt.Errorf("invalid token contract address %q", tokenContract)
	}

	saleParsed, err := abi.JSON(strings.NewReader(saleABI))
	if err != nil {
		return nil, fmt.Errorf("parse sale abi: %w", err)
	}
	tokenParsed, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}

	return &Client{
		sale:    bind.NewBoundContract(common.HexToAddress(saleContract), saleParsed, backend, backend, backend),
		token:   bind.NewBoundContract(common.HexToAddress(tokenContract), tokenParsed, backend, backend, backend),
		key:     key,
		chainID: chainID,
		closer:  func() {},
	}, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.closer()
}

func (c *Client) AddToWhitelist(ctx context.Context, addr string) (string, error) {
	return c.transact(ctx, c.sale, "addToWhitelist", addr)
}

func (c *Client) SetTokenAllotment(ctx context.Context, addr string) (string, error) {
	return c.transact(ctx, c.sale, "setTokenAllotment", addr)
}

// CheckBalance returns the token balance in whole tokens.
func (c *Client) CheckBalance(ctx context.Context, addr string) (*big.Int, error) {
	raw, err := c.callUint(ctx, c.token, "balanceOf", addr)
	if err != nil {
		return nil, err
	}
	unit, err := c.tokenUnit(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Quo(raw, unit), nil
}

func (c *Client) CheckProRata(ctx context.Context, addr string) (*big.Int, error) {
	return c.callUint(ctx, c.sale, "proRataShare", addr)
}

func (c *Client) transact(ctx context.Context, contract *bind.BoundContract, method, addr string) (string, error) {
	participant, err := parseAddress(addr)
	if err != nil {
		return "", err
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := contract.Transact(opts, method, participant)
	if err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	return tx.Hash().Hex(), nil
}

func (c *Client) callUint(ctx context.Context, contract *bind.BoundContract, method, addr string) (*big.Int, error) {
	target, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}

	var out []any
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, target); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: unexpected result count %d", method, len(out))
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// tokenUnit returns 10^decimals, cached after the first successful read.
func (c *Client) tokenUnit(ctx context.Context) (*big.Int, error) {
	c.unitMu.Lock()
	defer c.unitMu.Unlock()
	if c.unit != nil {
		return c.unit, nil
	}

	var out []any
	if err := c.token.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return nil, fmt.Errorf("decimals: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("decimals: unexpected result count %d", len(out))
	}
	decimals := *abi.ConvertType(out[0], new(uint8)).(*uint8)
	c.unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return c.unit, nil
}

// ErrInvalidAddress is returned for strings that are not 20-byte hex addresses.
var ErrInvalidAddress = whitelist.ErrInvalidAddress

func parseAddress(addr string) (common.Address, error) {
	if !whitelist.ValidAddress(addr) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return common.HexToAddress(addr), nil
}
