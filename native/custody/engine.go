package custody

import (
	"errors"
	"math/big"

	nativecommon "loantender/native/common"
)

const moduleName = "custody"

var (
	ErrNilState            = errors.New("custody engine: state not configured")
	ErrUnknownAsset        = errors.New("custody engine: asset not registered")
	ErrInvalidAmount       = errors.New("custody engine: amount must be positive")
	ErrInsufficientBalance = errors.New("custody engine: insufficient available balance")
	// ErrVaultUnderflow indicates a release larger than the vault balance.
	// The engine never issues such a release; hitting this means ledger and
	// custody state have diverged.
	ErrVaultUnderflow = errors.New("custody engine: escrow balance below release amount")
)

// engineState is the persistence surface required by the custody engine:
// asset registry membership, per-(account, asset) balances, and the
// deterministic vault address per asset.
type engineState interface {
	AssetExists(symbol string) bool
	VaultAddress(symbol string) ([20]byte, error)
	Balance(addr [20]byte, symbol string) (*big.Int, error)
	SetBalance(addr [20]byte, symbol string, amount *big.Int) error
}

// Engine moves asset balances between accounts and the per-asset protocol
// vault. All methods are synchronous and mutate only through the injected
// state, so a caller running them inside a state transaction gets
// all-or-nothing behaviour for free.
type Engine struct {
	state  engineState
	pauses nativecommon.PauseView
}

// NewEngine constructs a custody engine. SetState must be called before use.
func NewEngine() *Engine {
	return &Engine{}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses installs the module circuit breaker view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) ready(asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !e.state.AssetExists(asset) {
		return ErrUnknownAsset
	}
	return nil
}

func (e *Engine) move(asset string, amount *big.Int, from, to [20]byte, underflow error) error {
	fromBalance, err := e.state.Balance(from, asset)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return underflow
	}
	toBalance, err := e.state.Balance(to, asset)
	if err != nil {
		return err
	}
	if err := e.state.SetBalance(from, asset, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return e.state.SetBalance(to, asset, new(big.Int).Add(toBalance, amount))
}

// Transfer moves settled funds between two accounts.
func (e *Engine) Transfer(asset string, amount *big.Int, from, to [20]byte) error {
	if err := e.ready(asset, amount); err != nil {
		return err
	}
	return e.move(asset, amount, from, to, ErrInsufficientBalance)
}

// EscrowLock moves funds from an account's available balance into the
// asset's custody vault.
func (e *Engine) EscrowLock(asset string, amount *big.Int, from [20]byte) error {
	if err := e.ready(asset, amount); err != nil {
		return err
	}
	vault, err := e.state.VaultAddress(asset)
	if err != nil {
		return err
	}
	return e.move(asset, amount, from, vault, ErrInsufficientBalance)
}

// EscrowRelease moves funds out of the asset's custody vault back to an
// account's available balance.
func (e *Engine) EscrowRelease(asset string, amount *big.Int, to [20]byte) error {
	if err := e.ready(asset, amount); err != nil {
		return err
	}
	vault, err := e.state.VaultAddress(asset)
	if err != nil {
		return err
	}
	return e.move(asset, amount, vault, to, ErrVaultUnderflow)
}

// Mint credits freshly issued funds to an account. Reserved for genesis
// allocations and the dev-mode faucet; the RPC surface never exposes it on
// production networks.
func (e *Engine) Mint(to [20]byte, asset string, amount *big.Int) error {
	if err := e.ready(asset, amount); err != nil {
		return err
	}
	balance, err := e.state.Balance(to, asset)
	if err != nil {
		return err
	}
	return e.state.SetBalance(to, asset, new(big.Int).Add(balance, amount))
}

// EscrowBalance reports the vault balance for an asset. Used by invariant
// checks and queries.
func (e *Engine) EscrowBalance(asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !e.state.AssetExists(asset) {
		return nil, ErrUnknownAsset
	}
	vault, err := e.state.VaultAddress(asset)
	if err != nil {
		return nil, err
	}
	return e.state.Balance(vault, asset)
}

// BalanceOf reports an account's available balance for an asset.
func (e *Engine) BalanceOf(addr [20]byte, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !e.state.AssetExists(asset) {
		return nil, ErrUnknownAsset
	}
	return e.state.Balance(addr, asset)
}
