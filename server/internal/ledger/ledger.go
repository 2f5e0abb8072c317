// Package ledger issues participant wallets and reports balances.
//
// The Ledger interface is what the create-user and balance endpoints depend
// on. Local is an in-process implementation that mints addresses and seeds
// itself and credits every new wallet with a fixed starting balance; it stands
// in for an external ledger service.
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownAccount is returned by Balance for an address the ledger never issued.
var ErrUnknownAccount = errors.New("unknown account")

// Wallet is a freshly issued account.
type Wallet struct {
	Address string
	Seed    string
	Balance float64
}

// Ledger issues wallets and reports balances.
type Ledger interface {
	CreateWallet(ctx context.Context) (Wallet, error)
	Balance(ctx context.Context, address string) (float64, error)
}

// Local is an in-memory Ledger.
//
// Local is safe for concurrent use.
type Local struct {
	startingBalance float64

	mu       sync.RWMutex
	balances map[string]float64
}

// NewLocal creates a Local ledger crediting startingBalance to every new wallet.
func NewLocal(startingBalance float64) *Local {
	return &Local{
		startingBalance: startingBalance,
		balances:        make(map[string]float64),
	}
}

// CreateWallet mints a new address ("r" + 24 hex chars) and seed ("s" + 28
// hex chars).
func (l *Local) CreateWallet(ctx context.Context) (Wallet, error) {
	if err := ctx.Err(); err != nil {
		return Wallet{}, err
	}

	address := "r" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	seed, err := randomHex(14)
	if err != nil {
		return Wallet{}, fmt.Errorf("ledger: generate seed: %w", err)
	}

	l.mu.Lock()
	l.balances[address] = l.startingBalance
	l.mu.Unlock()

	return Wallet{Address: address, Seed: "s" + seed, Balance: l.startingBalance}, nil
}

// Balance returns the balance of address.
func (l *Local) Balance(ctx context.Context, address string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.balances[address]
	if !ok {
		return 0, fmt.Errorf("ledger: balance %q: %w", address, ErrUnknownAccount)
	}
	return b, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
