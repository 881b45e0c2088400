package core

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"loantender/core/events"
	"loantender/core/state"
	"loantender/core/types"
	"loantender/crypto"
	"loantender/native/auction"
	"loantender/native/custody"
	"loantender/native/positions"
	"loantender/storage"
)

var chainHeightKey = []byte("chain/height")
var genesisDoneKey = []byte("chain/genesis-applied")

// GenesisAsset registers an asset in the custody registry on first start.
type GenesisAsset struct {
	Symbol   string
	Name     string
	Decimals uint8
	MinUnit  *big.Int
}

// GenesisAllocation credits an account with an initial balance on first
// start.
type GenesisAllocation struct {
	Address crypto.Address
	Asset   string
	Amount  *big.Int
}

// NodeConfig carries everything the node needs beyond its database handle.
type NodeConfig struct {
	Params      auction.Params
	Assets      []GenesisAsset
	Allocations []GenesisAllocation
	// DevFaucet exposes balance minting through the node API. Never enable
	// on a network carrying real value.
	DevFaucet bool
}

type pauseSet struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func (p *pauseSet) IsPaused(module string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}

func (p *pauseSet) set(module string, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused[module] = paused
}

// Node owns the database, the engines, and the event feed. Every mutating
// entry point runs serialized under the node mutex against a buffered state
// overlay: either all effects commit, or none do and the caller observes the
// failure. Events publish only after commit.
type Node struct {
	mu sync.Mutex

	db        storage.Database
	cfg       NodeConfig
	auction   *auction.Engine
	custody   *custody.Engine
	positions *positions.Engine
	pauses    *pauseSet
	feed      *eventFeed
	logger    *slog.Logger

	height uint64
}

// NewNode wires the engines over the provided database and applies genesis
// state on first start.
func NewNode(db storage.Database, cfg NodeConfig, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database must not be nil")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		db:        db,
		cfg:       cfg,
		auction:   auction.NewEngine(cfg.Params),
		custody:   custody.NewEngine(),
		positions: positions.NewEngine(),
		pauses:    &pauseSet{paused: make(map[string]bool)},
		feed:      newEventFeed(eventBacklogSize),
		logger:    logger.With("component", "node"),
	}
	n.auction.SetCustody(n.custody)
	n.auction.SetPositions(n.positions)
	n.auction.SetPauses(n.pauses)
	n.custody.SetPauses(n.pauses)

	manager := state.NewManager(db)
	if _, err := manager.KVGet(chainHeightKey, &n.height); err != nil {
		return nil, err
	}
	if err := n.applyGenesis(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) applyGenesis() error {
	return n.withState(func(m *state.Manager) error {
		var done bool
		if ok, err := m.KVGet(genesisDoneKey, &done); err != nil {
			return err
		} else if ok && done {
			return nil
		}
		for _, asset := range n.cfg.Assets {
			if err := m.RegisterAsset(asset.Symbol, asset.Name, asset.Decimals, asset.MinUnit); err != nil {
				return err
			}
		}
		for _, alloc := range n.cfg.Allocations {
			if err := n.custody.Mint(alloc.Address.Raw(), alloc.Asset, alloc.Amount); err != nil {
				return err
			}
		}
		n.logger.Info("genesis applied", "assets", len(n.cfg.Assets), "allocations", len(n.cfg.Allocations))
		return m.KVPut(genesisDoneKey, true)
	})
}

// withState runs fn against a buffered overlay of the database with all
// engines rebound to it, committing only when fn succeeds. The node mutex
// provides the serialized execution model: one operation at a time observes
// and mutates a loan's ledger slot.
func (n *Node) withState(fn func(m *state.Manager) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withStateLocked(fn)
}

func (n *Node) withStateLocked(fn func(m *state.Manager) error) error {
	txn := state.NewTxn(n.db)
	manager := state.NewManager(txn)
	collector := &events.Collector{}

	n.auction.SetState(manager)
	n.auction.SetEmitter(collector)
	n.auction.SetChainHeight(n.height)
	n.auction.SetSettlementHeight(n.height)
	n.custody.SetState(manager)
	n.positions.SetState(manager)

	if err := fn(manager); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	n.publish(collector.Drain())
	return nil
}

func (n *Node) publish(emitted []events.Event) {
	for _, evt := range emitted {
		carrier, ok := evt.(interface{ Event() *types.Event })
		if !ok {
			continue
		}
		payload := carrier.Event()
		if payload == nil {
			continue
		}
		n.feed.publish(payload)
	}
}

// read builds a manager over the raw database for queries. Reads take the
// node mutex too so they never observe a half-applied operation (commits are
// multi-key).
func (n *Node) read(fn func(m *state.Manager) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fn(state.NewManager(n.db))
}

// CreateLoanAuction submits a new collateralized loan auction for borrower.
func (n *Node) CreateLoanAuction(borrower crypto.Address, collateralAsset string, collateralAmount *big.Int, borrowAsset string, borrowAmount, maxRepayment *big.Int, durationBlocks, auctionDurationBlocks uint64) (uint64, error) {
	var loanID uint64
	err := n.withState(func(*state.Manager) error {
		var err error
		loanID, err = n.auction.CreateLoanAuction(borrower.Raw(), collateralAsset, collateralAmount, borrowAsset, borrowAmount, maxRepayment, durationBlocks, auctionDurationBlocks)
		return err
	})
	return loanID, err
}

// PlaceBid submits a repayment offer from lender on the given loan auction.
func (n *Node) PlaceBid(lender crypto.Address, loanID uint64, repaymentAmount *big.Int) (uint64, error) {
	var bidID uint64
	err := n.withState(func(*state.Manager) error {
		var err error
		bidID, err = n.auction.PlaceBid(lender.Raw(), loanID, repaymentAmount)
		return err
	})
	return bidID, err
}

// SettleAuction funds a loan whose bidding window has closed with a winner.
func (n *Node) SettleAuction(loanID uint64) error {
	return n.withState(func(*state.Manager) error {
		return n.auction.SettleAuction(loanID)
	})
}

// Repay settles a funded loan in favour of the lender-position holder.
func (n *Node) Repay(borrower crypto.Address, loanID uint64) error {
	return n.withState(func(*state.Manager) error {
		return n.auction.Repay(borrower.Raw(), loanID)
	})
}

// ClaimDefault lets the lender-position holder seize collateral of a
// matured, unpaid loan.
func (n *Node) ClaimDefault(caller crypto.Address, loanID uint64) error {
	return n.withState(func(*state.Manager) error {
		return n.auction.ClaimDefault(caller.Raw(), loanID)
	})
}

// CancelExpired cleans up an expired auction that attracted no bids.
func (n *Node) CancelExpired(loanID uint64) error {
	return n.withState(func(*state.Manager) error {
		return n.auction.CancelExpired(loanID)
	})
}

// GetLoan returns the stored loan, if any.
func (n *Node) GetLoan(loanID uint64) (*auction.Loan, bool, error) {
	var (
		loan *auction.Loan
		ok   bool
	)
	err := n.read(func(m *state.Manager) error {
		var err error
		loan, ok, err = m.LoanGet(loanID)
		return err
	})
	return loan, ok, err
}

// GetBid returns the stored bid, if any.
func (n *Node) GetBid(bidID uint64) (*auction.Bid, bool, error) {
	var (
		bid *auction.Bid
		ok  bool
	)
	err := n.read(func(m *state.Manager) error {
		var err error
		bid, ok, err = m.BidGet(bidID)
		return err
	})
	return bid, ok, err
}

// GetWinningBid returns the winning-bid index entry for a loan, if any.
func (n *Node) GetWinningBid(loanID uint64) (*auction.WinningBid, bool, error) {
	var (
		winner *auction.WinningBid
		ok     bool
	)
	err := n.read(func(m *state.Manager) error {
		var err error
		winner, ok, err = m.WinningBidGet(loanID)
		return err
	})
	return winner, ok, err
}

// GetLoanCount returns the number of loans ever created.
func (n *Node) GetLoanCount() (uint64, error) {
	var count uint64
	err := n.read(func(m *state.Manager) error {
		var err error
		count, err = m.LoanCount()
		return err
	})
	return count, err
}

// GetPosition returns the stored position, if any.
func (n *Node) GetPosition(positionID uint64) (*positions.Position, bool, error) {
	var (
		position *positions.Position
		ok       bool
	)
	err := n.read(func(m *state.Manager) error {
		var err error
		position, ok, err = m.PositionGet(positionID)
		return err
	})
	return position, ok, err
}

// TransferPosition moves a live position claim to a new owner.
func (n *Node) TransferPosition(caller, newOwner crypto.Address, positionID uint64) error {
	return n.withState(func(*state.Manager) error {
		return n.positions.Transfer(caller.Raw(), newOwner.Raw(), positionID)
	})
}

// BalanceOf reports an account's available balance for an asset.
func (n *Node) BalanceOf(addr crypto.Address, asset string) (*big.Int, error) {
	var balance *big.Int
	err := n.read(func(m *state.Manager) error {
		var err error
		balance, err = m.Balance(addr.Raw(), asset)
		return err
	})
	return balance, err
}

// EscrowBalance reports the custody vault balance for an asset.
func (n *Node) EscrowBalance(asset string) (*big.Int, error) {
	var balance *big.Int
	err := n.read(func(m *state.Manager) error {
		vault, err := m.VaultAddress(asset)
		if err != nil {
			return err
		}
		balance, err = m.Balance(vault, asset)
		return err
	})
	return balance, err
}

// Assets returns the registered asset symbols.
func (n *Node) Assets() ([]string, error) {
	var assets []string
	err := n.read(func(m *state.Manager) error {
		var err error
		assets, err = m.Assets()
		return err
	})
	return assets, err
}

// Faucet mints dev balances when the node runs with DevFaucet enabled.
func (n *Node) Faucet(to crypto.Address, asset string, amount *big.Int) error {
	if !n.cfg.DevFaucet {
		return fmt.Errorf("node: faucet disabled")
	}
	return n.withState(func(*state.Manager) error {
		return n.custody.Mint(to.Raw(), asset, amount)
	})
}

// Height returns the current chain height.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

// AdvanceHeight moves the chain clock forward by delta blocks and persists
// the new height.
func (n *Node) AdvanceHeight(delta uint64) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	next := n.height + delta
	if err := n.withStateLocked(func(m *state.Manager) error {
		return m.KVPut(chainHeightKey, next)
	}); err != nil {
		return n.height, err
	}
	n.height = next
	return next, nil
}

// SetPaused toggles the circuit breaker for a module ("auction", "custody").
func (n *Node) SetPaused(module string, paused bool) {
	n.pauses.set(module, paused)
	n.logger.Warn("module pause toggled", "module", module, "paused", paused)
}

// SubscribeEvents registers an event feed subscriber. The returned backlog
// holds events published before the call; cancel must be invoked when done.
func (n *Node) SubscribeEvents(buffer int) (<-chan *types.Event, func(), []*types.Event) {
	return n.feed.subscribe(buffer)
}
