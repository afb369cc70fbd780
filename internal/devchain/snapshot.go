package devchain

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/ledger"
)

// State is the persisted form of a chain
type State struct {
	ChainID  uint64                    `json:"chain_id"`
	Contract common.Address            `json:"contract"`
	Ledger   ledger.Snapshot           `json:"ledger"`
	Headers  []*types.Header           `json:"headers"`
	Receipts []*types.Receipt          `json:"receipts"`
	Nonces   map[common.Address]uint64 `json:"nonces"`
}

// State exports the chain state
func (c *Chain) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := State{
		ChainID:  c.cfg.ChainID.Uint64(),
		Contract: c.cfg.ContractAddress,
		Ledger:   c.dispatcher.Ledger().Snapshot(),
		Headers:  make([]*types.Header, len(c.headers)),
		Receipts: make([]*types.Receipt, 0, len(c.receipts)),
		Nonces:   make(map[common.Address]uint64, len(c.nonces)),
	}
	copy(s.Headers, c.headers)
	for _, r := range c.receipts {
		s.Receipts = append(s.Receipts, r)
	}
	for addr, n := range c.nonces {
		s.Nonces[addr] = n
	}
	return s
}

// restore replaces the chain state; the ledger is restored by the caller
func (c *Chain) restore(s State) error {
	if s.ChainID != c.cfg.ChainID.Uint64() {
		return fmt.Errorf("state belongs to chain %d, node runs chain %d", s.ChainID, c.cfg.ChainID.Uint64())
	}
	if s.Contract != c.cfg.ContractAddress {
		return fmt.Errorf("state belongs to contract %s, node serves %s", s.Contract.Hex(), c.cfg.ContractAddress.Hex())
	}
	if len(s.Headers) == 0 {
		return errors.New("state has no genesis header")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.headers = s.Headers
	c.receipts = make(map[common.Hash]*types.Receipt, len(s.Receipts))
	c.logs = nil
	for _, r := range s.Receipts {
		c.receipts[r.TxHash] = r
	}
	// logs are kept in block order
	for _, h := range c.headers {
		for _, r := range s.Receipts {
			if r.BlockNumber != nil && r.BlockNumber.Cmp(h.Number) == 0 {
				c.logs = append(c.logs, r.Logs...)
			}
		}
	}
	c.nonces = make(map[common.Address]uint64, len(s.Nonces))
	for addr, n := range s.Nonces {
		c.nonces[addr] = n
	}
	return nil
}

// Store persists chain state in a JSON file
type Store struct {
	path string
	fs   adapter.FileSystem
	json adapter.JSON
}

// NewStore creates a state store writing to path
func NewStore(path string, fs adapter.FileSystem, json adapter.JSON) *Store {
	return &Store{path: path, fs: fs, json: json}
}

// Save writes the chain state
func (s *Store) Save(c *Chain) error {
	data, err := s.json.Marshal(c.State())
	if err != nil {
		return fmt.Errorf("failed to marshal chain state: %w", err)
	}
	if err := s.fs.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write chain state: %w", err)
	}
	return nil
}

// Load restores chain state into c and returns false when no state file exists yet
func (s *Store) Load(c *Chain) (bool, error) {
	data, err := s.fs.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read chain state: %w", err)
	}

	var state State
	if err := s.json.Unmarshal(data, &state); err != nil {
		return false, fmt.Errorf("failed to unmarshal chain state: %w", err)
	}

	if _, err := ledger.Restore(state.Ledger); err != nil {
		return false, fmt.Errorf("failed to restore ledger: %w", err)
	}
	if err := c.restore(state); err != nil {
		return false, err
	}
	if err := c.Ledger().Load(state.Ledger); err != nil {
		return false, fmt.Errorf("failed to restore ledger: %w", err)
	}

	return true, nil
}
