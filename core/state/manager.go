package state

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"loantender/crypto"
	"loantender/storage"
)

// Manager provides typed read/write access to the node's state. Keys are
// prefixed, keccak256-hashed and RLP-encoded before hitting the underlying
// store so every backend sees the same flat keyspace.
type Manager struct {
	store storage.Database
}

// NewManager creates a state manager operating on the provided store. The
// store may be a raw database or a Txn overlay.
func NewManager(store storage.Database) *Manager {
	return &Manager{store: store}
}

// AssetMetadata describes a registered asset handled by the custody engine.
type AssetMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
	MinUnit  *big.Int
}

// Clone returns a deep copy of the metadata.
func (m *AssetMetadata) Clone() *AssetMetadata {
	if m == nil {
		return nil
	}
	clone := *m
	if m.MinUnit != nil {
		clone.MinUnit = new(big.Int).Set(m.MinUnit)
	} else {
		clone.MinUnit = big.NewInt(0)
	}
	return &clone
}

var (
	assetPrefix   = []byte("asset:")
	balancePrefix = []byte("balance:")
	vaultPrefix   = []byte("vault:")
	assetListKey  = ethcrypto.Keccak256([]byte("asset-list"))
)

func assetMetadataKey(symbol string) []byte {
	buf := make([]byte, len(assetPrefix)+len(symbol))
	copy(buf, assetPrefix)
	copy(buf[len(assetPrefix):], symbol)
	return ethcrypto.Keccak256(buf)
}

func balanceKey(addr []byte, symbol string) []byte {
	buf := make([]byte, len(balancePrefix)+len(symbol)+1+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], symbol)
	buf[len(balancePrefix)+len(symbol)] = ':'
	copy(buf[len(balancePrefix)+len(symbol)+1:], addr)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (m *Manager) loadAssetList() ([]string, error) {
	data, err := m.store.Get(assetListKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []string{}, nil
	}
	var list []string
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) writeAssetList(list []string) error {
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.store.Put(assetListKey, encoded)
}

// RegisterAsset stores the metadata for an asset and records it in the asset
// index. Registering an already-registered symbol fails.
func (m *Manager) RegisterAsset(symbol, name string, decimals uint8, minUnit *big.Int) error {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("asset symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("asset %s: name must not be empty", normalized)
	}
	if minUnit == nil || minUnit.Sign() <= 0 {
		return fmt.Errorf("asset %s: minimum unit must be positive", normalized)
	}
	if existing, err := m.Asset(normalized); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("asset %s already registered", normalized)
	}

	list, err := m.loadAssetList()
	if err != nil {
		return err
	}
	list = append(list, normalized)
	sort.Strings(list)
	if err := m.writeAssetList(list); err != nil {
		return err
	}

	meta := &AssetMetadata{
		Symbol:   normalized,
		Name:     name,
		Decimals: decimals,
		MinUnit:  new(big.Int).Set(minUnit),
	}
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	return m.store.Put(assetMetadataKey(normalized), encoded)
}

// Asset retrieves metadata for a registered asset. A nil result means the
// symbol is unknown.
func (m *Manager) Asset(symbol string) (*AssetMetadata, error) {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return nil, nil
	}
	data, err := m.store.Get(assetMetadataKey(normalized))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	meta := new(AssetMetadata)
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// AssetExists reports whether the provided asset symbol is registered.
func (m *Manager) AssetExists(symbol string) bool {
	meta, err := m.Asset(symbol)
	return err == nil && meta != nil
}

// Assets returns the sorted symbols of every registered asset.
func (m *Manager) Assets() ([]string, error) {
	return m.loadAssetList()
}

// VaultAddress derives the deterministic custody vault address for an asset.
// The vault has no private key; only the custody engine moves its funds.
func (m *Manager) VaultAddress(symbol string) ([crypto.AddressLength]byte, error) {
	normalized := normalizeSymbol(symbol)
	var vault [crypto.AddressLength]byte
	if !m.AssetExists(normalized) {
		return vault, fmt.Errorf("asset %s not registered", normalized)
	}
	buf := make([]byte, len(vaultPrefix)+len(normalized))
	copy(buf, vaultPrefix)
	copy(buf[len(vaultPrefix):], normalized)
	hash := ethcrypto.Keccak256(buf)
	copy(vault[:], hash[len(hash)-crypto.AddressLength:])
	return vault, nil
}

// SetBalance stores an asset balance for the provided account.
func (m *Manager) SetBalance(addr [crypto.AddressLength]byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	normalized := normalizeSymbol(symbol)
	if !m.AssetExists(normalized) {
		return fmt.Errorf("asset %s not registered", normalized)
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.store.Put(balanceKey(addr[:], normalized), encoded)
}

// Balance retrieves an asset balance for the provided account. Unknown
// accounts read as zero.
func (m *Manager) Balance(addr [crypto.AddressLength]byte, symbol string) (*big.Int, error) {
	data, err := m.store.Get(balanceKey(addr[:], normalizeSymbol(symbol)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before insertion.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.store.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.store.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
