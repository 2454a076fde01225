package state

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// GenesisAccount is one pre-funded account of the genesis file
type GenesisAccount struct {
	Balance string                      `json:"balance"`
	Nonce   hexutil.Uint64              `json:"nonce,omitempty"`
	Code    hexutil.Bytes               `json:"code,omitempty"`
	Storage map[common.Hash]common.Hash `json:"storage,omitempty"`
}

// Genesis is the subset of a geth genesis.json the node understands
type Genesis struct {
	Config    map[string]interface{}    `json:"config"`
	Timestamp hexutil.Uint64            `json:"timestamp"`
	GasLimit  hexutil.Uint64            `json:"gasLimit"`
	Extradata string                    `json:"extradata"`
	Alloc     map[string]GenesisAccount `json:"alloc"`
}

// LoadGenesis reads and parses a genesis file
func LoadGenesis(genesisPath string) (*Genesis, error) {
	data, err := os.ReadFile(genesisPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis.json: %v", err)
	}

	var genesis Genesis
	if err := json.Unmarshal(data, &genesis); err != nil {
		return nil, fmt.Errorf("failed to parse genesis.json: %v", err)
	}
	return &genesis, nil
}

// parseBalance accepts hex with 0x prefix or decimal
func parseBalance(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 0)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("malformed number %q", s)
	}
	balance, overflow := uint256.FromBig(n)
	if overflow {
		return nil, fmt.Errorf("number %q overflows 256 bits", s)
	}
	return balance, nil
}

// Apply writes the genesis allocation into the store
func (g *Genesis) Apply(s *Store) error {
	for addr, alloc := range g.Alloc {
		if !strings.HasPrefix(addr, "0x") {
			addr = "0x" + addr
		}
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid genesis address %q", addr)
		}
		address := common.HexToAddress(addr)
		balance, err := parseBalance(alloc.Balance)
		if err != nil {
			return fmt.Errorf("invalid balance for genesis account %s: %v", addr, err)
		}
		s.SetBalance(address, balance)
		s.SetNonce(address, uint64(alloc.Nonce))
		if len(alloc.Code) > 0 {
			s.SetCode(address, alloc.Code)
		}
		if len(alloc.Storage) > 0 {
			s.SetStorage(address, alloc.Storage)
		}
	}
	return nil
}

// Coinbase returns the signer encoded in clique-style extradata, or the zero
// address when the extradata is too short to carry one
func (g *Genesis) Coinbase() common.Address {
	extradata := strings.TrimPrefix(g.Extradata, "0x")
	if len(extradata) < 104 {
		return common.Address{}
	}
	return common.HexToAddress("0x" + extradata[64:104])
}
