package client

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/feral-file/batch-ledger/internal/adapter"
)

// ErrSignatureDeclined is returned when the account holder declines to sign
var ErrSignatureDeclined = errors.New("user denied transaction signature")

// Signer authorizes transactions on behalf of an account
//
//go:generate mockgen -source=signer.go -destination=../mocks/signer.go -package=mocks -mock_names=Signer=MockSigner
type Signer interface {
	// Address returns the account the signer signs for
	Address() common.Address

	// SignTx signs a transaction for the given chain
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

type keySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner creates a signer holding a private key
func NewKeySigner(key *ecdsa.PrivateKey) Signer {
	return &keySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewHexKeySigner creates a signer from a hex encoded private key
func NewHexKeySigner(hexKey string) (Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeySigner(key), nil
}

// LoadKeystoreSigner decrypts an encrypted JSON key file
func LoadKeystoreSigner(fs adapter.FileSystem, path, passphrase string) (Signer, error) {
	keyJSON, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore file: %w", err)
	}
	key, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore file: %w", err)
	}
	return NewKeySigner(key.PrivateKey), nil
}

func (s *keySigner) Address() common.Address {
	return s.address
}

func (s *keySigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// ConfirmFunc asks the account holder to approve a transaction
type ConfirmFunc func(ctx context.Context, tx *types.Transaction) (bool, error)

type confirmingSigner struct {
	Signer
	confirm ConfirmFunc
}

// NewConfirmingSigner wraps a signer so every transaction is approved before it is signed
func NewConfirmingSigner(signer Signer, confirm ConfirmFunc) Signer {
	return &confirmingSigner{Signer: signer, confirm: confirm}
}

func (s *confirmingSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	approved, err := s.confirm(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, ErrSignatureDeclined
	}
	return s.Signer.SignTx(ctx, tx, chainID)
}
