// Package accounts maintains account balances and applies the effects of
// transactions to them. Every mutation made while applying transactions is
// backed up first so a partially applied batch can be undone.
package accounts

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/genesis"
	"github.com/ardanlabs/minichain/foundation/blockchain/merkle"
	"github.com/ardanlabs/minichain/foundation/blockchain/signature"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage"
)

// EventHandler defines a function that is called when events
// occur in the processing of accounts.
type EventHandler func(v string, args ...any)

// Engine represents the behavior of the account state engine.
type Engine interface {
	GetAccount(addr database.Address) (database.Account, error)
	SetAccount(addr database.Address, account database.Account) error
	BackupAccount(addr database.Address) error
	Rollback() error
	ClearBackups()
	GenStateRoot() (signature.Hash, error)
	ApplyTx(tx database.Tx) error
	ApplyBlock(txs []database.Tx) error
}

// TxError identifies the transaction that failed when applying a batch.
type TxError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (te *TxError) Error() string {
	return fmt.Sprintf("tx[%d]: %s", te.Index, te.Err)
}

// Unwrap provides access to the underlying error.
func (te *TxError) Unwrap() error {
	return te.Err
}

// =============================================================================

// Config represents the configuration required to construct the accounts.
type Config struct {
	Storage   storage.AccountStorage
	Genesis   genesis.Genesis
	EvHandler EventHandler
}

// backup is the value an account held before the current batch touched it.
type backup struct {
	account database.Account
	existed bool
}

// Accounts manages the account store. It implements the Engine interface.
type Accounts struct {
	mu        sync.Mutex
	storage   storage.AccountStorage
	backups   map[database.Address]backup
	evHandler EventHandler
}

// New constructs the accounts engine. An empty store is seeded with the
// genesis balances.
func New(cfg Config) (*Accounts, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	act := Accounts{
		storage:   cfg.Storage,
		backups:   make(map[database.Address]backup),
		evHandler: ev,
	}

	var count int
	err := cfg.Storage.ForEach(func(database.Address, database.Account) error {
		count++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}

	if count == 0 {
		for addrStr, balance := range cfg.Genesis.Balances {
			addr, err := database.ParseAddress(addrStr)
			if err != nil {
				return nil, fmt.Errorf("genesis balance: %w", err)
			}

			if err := cfg.Storage.Put(addr, database.Account{Balance: balance}); err != nil {
				return nil, fmt.Errorf("seed genesis balance: %w", err)
			}
			ev("accounts: New: genesis: account[%s]: balance[%d]", addr, balance)
		}
	}

	return &act, nil
}

// Close releases the underlying store.
func (act *Accounts) Close() error {
	return act.storage.Close()
}

// GetAccount returns the account for the specified address.
func (act *Accounts) GetAccount(addr database.Address) (database.Account, error) {
	act.mu.Lock()
	defer act.mu.Unlock()

	return act.get(addr)
}

// SetAccount replaces the account for the specified address.
func (act *Accounts) SetAccount(addr database.Address, account database.Account) error {
	act.mu.Lock()
	defer act.mu.Unlock()

	return act.storage.Put(addr, account)
}

// BackupAccount records the current value of the account so it can be
// restored by Rollback. Only the first backup of an account since the last
// Rollback or ClearBackups is kept.
func (act *Accounts) BackupAccount(addr database.Address) error {
	act.mu.Lock()
	defer act.mu.Unlock()

	return act.backup(addr, false)
}

// Rollback restores every backed up account to its value before the
// current batch and discards the backups.
func (act *Accounts) Rollback() error {
	act.mu.Lock()
	defer act.mu.Unlock()

	return act.rollback()
}

// ClearBackups discards the backups once a batch is known to have been
// committed.
func (act *Accounts) ClearBackups() {
	act.mu.Lock()
	defer act.mu.Unlock()

	act.backups = make(map[database.Address]backup)
}

// GenStateRoot returns the merkle root of every account ordered by
// address. The zero hash is returned when there are no accounts.
func (act *Accounts) GenStateRoot() (signature.Hash, error) {
	act.mu.Lock()
	defer act.mu.Unlock()

	var leafs []signature.Hash
	err := act.storage.ForEach(func(addr database.Address, account database.Account) error {
		data, err := account.Bytes()
		if err != nil {
			return err
		}

		leafs = append(leafs, signature.Sum(addr[:], data))
		return nil
	})
	if err != nil {
		return signature.ZeroHash, err
	}

	if len(leafs) == 0 {
		return signature.ZeroHash, nil
	}

	tree, err := merkle.FromHashes(leafs)
	if err != nil {
		return signature.ZeroHash, err
	}

	return tree.Root(), nil
}

// ApplyTx applies the effects of a single transaction. The touched accounts
// are backed up and remain so until Rollback or ClearBackups is called.
func (act *Accounts) ApplyTx(tx database.Tx) error {
	act.mu.Lock()
	defer act.mu.Unlock()

	return act.apply(tx)
}

// ApplyBlock applies the transactions in order. On the first failure every
// change made by the batch is rolled back and a TxError naming the failed
// transaction is returned. On success the backups are kept so the caller can
// still roll back if the block is not committed.
func (act *Accounts) ApplyBlock(txs []database.Tx) error {
	act.mu.Lock()
	defer act.mu.Unlock()

	for i, tx := range txs {
		if err := act.apply(tx); err != nil {
			act.evHandler("accounts: ApplyBlock: tx[%d]: ERROR: %s", i, err)

			if rerr := act.rollback(); rerr != nil {
				return errors.Join(&TxError{Index: i, Err: err}, rerr)
			}
			return &TxError{Index: i, Err: err}
		}
	}

	return nil
}

// =============================================================================

// get reads the account and maps a storage miss to ErrAccountNotFound.
func (act *Accounts) get(addr database.Address) (database.Account, error) {
	account, err := act.storage.Get(addr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return database.Account{}, database.NewCoreError(database.AccountNotFound, fmt.Sprintf("account not found: %s", addr))
		}
		return database.Account{}, err
	}

	return account, nil
}

// backup records the account value unless it's already backed up. When
// allowMissing is true a missing account is recorded so a rollback removes
// it again.
func (act *Accounts) backup(addr database.Address, allowMissing bool) error {
	if _, exists := act.backups[addr]; exists {
		return nil
	}

	account, err := act.get(addr)
	switch {
	case err == nil:
		act.backups[addr] = backup{account: account, existed: true}
	case errors.Is(err, database.ErrAccountNotFound) && allowMissing:
		act.backups[addr] = backup{}
	default:
		return err
	}

	return nil
}

// rollback restores the backups and clears them.
func (act *Accounts) rollback() error {
	for addr, b := range act.backups {
		var err error
		switch b.existed {
		case true:
			err = act.storage.Put(addr, b.account)
		default:
			err = act.storage.Delete(addr)
		}

		if err != nil {
			return fmt.Errorf("rollback account %s: %w", addr, err)
		}
	}

	act.evHandler("accounts: rollback: restored[%d]", len(act.backups))
	act.backups = make(map[database.Address]backup)

	return nil
}

// apply executes the transaction against the store.
func (act *Accounts) apply(tx database.Tx) error {
	switch tx.Type {
	case database.TxTransfer:
		td, err := tx.Transfer()
		if err != nil {
			return err
		}
		return act.transfer(td)

	case database.TxBlockReward:
		rd, err := tx.Reward()
		if err != nil {
			return err
		}
		return act.reward(rd)
	}

	return database.NewCoreError(database.Execution, fmt.Sprintf("unsupported transaction type %s", tx.Type))
}

// transfer moves the amount between the accounts. Both accounts are backed
// up before either is changed.
func (act *Accounts) transfer(td database.TransferData) error {
	if err := act.backup(td.From, false); err != nil {
		return err
	}

	if err := act.backup(td.To, false); err != nil {
		return err
	}

	from, err := act.get(td.From)
	if err != nil {
		return err
	}

	if from.Balance < td.Amount {
		return database.NewCoreError(database.InsufficientBalance, fmt.Sprintf("insufficient balance: %s has %d, needs %d", td.From, from.Balance, td.Amount))
	}

	from.Balance -= td.Amount
	from.Nonce++
	if err := act.storage.Put(td.From, from); err != nil {
		return err
	}

	to, err := act.get(td.To)
	if err != nil {
		return err
	}

	to.Balance += td.Amount
	if err := act.storage.Put(td.To, to); err != nil {
		return err
	}

	return nil
}

// reward credits the amount to the account, creating it if needed.
func (act *Accounts) reward(rd database.RewardData) error {
	if err := act.backup(rd.To, true); err != nil {
		return err
	}

	to, err := act.get(rd.To)
	if err != nil && !errors.Is(err, database.ErrAccountNotFound) {
		return err
	}

	to.Balance += rd.Amount
	return act.storage.Put(rd.To, to)
}
