package memstore

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

var (
	_ accounting.RepositoryPort = (*Store)(nil)
	_ accounting.TxRepository   = (*tx)(nil)
	_ accounts.Repository       = (*Store)(nil)
)

func (s *Store) List(_ context.Context, filter accounts.ListFilter) ([]accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listAccounts(s.state, filter), nil
}

func (s *Store) GetByCode(_ context.Context, code string) (accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.state.accounts[code]
	if !ok {
		return accounts.Account{}, fmt.Errorf("%w: %s", shared.ErrAccountNotFound, code)
	}
	return a, nil
}

func (s *Store) GetByID(_ context.Context, id int64) (accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.state.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return accounts.Account{}, shared.ErrAccountNotFound
}

func (s *Store) Insert(_ context.Context, a accounts.Account) (accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("insert_account"); err != nil {
		return accounts.Account{}, err
	}
	if _, ok := s.state.accounts[a.Code]; ok {
		return accounts.Account{}, shared.ErrDuplicateAccountCode
	}
	s.state.nextAccountID++
	a.ID = s.state.nextAccountID
	a.CurrentBalance = decimal.Zero
	a.UpdatedAt = a.CreatedAt
	s.state.accounts[a.Code] = a
	return a, nil
}

func (s *Store) Update(_ context.Context, a accounts.Account) (accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current accounts.Account
	found := false
	for _, existing := range s.state.accounts {
		if existing.ID == a.ID {
			current, found = existing, true
			break
		}
	}
	if !found {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	if other, ok := s.state.accounts[a.Code]; ok && other.ID != a.ID {
		return accounts.Account{}, shared.ErrDuplicateAccountCode
	}
	delete(s.state.accounts, current.Code)
	current.Code = a.Code
	current.Name = a.Name
	current.Type = a.Type
	current.Subtype = a.Subtype
	current.IsActive = a.IsActive
	current.UpdatedAt = a.UpdatedAt
	s.state.accounts[current.Code] = current
	return current, nil
}

func (s *Store) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.state.accounts[code]
	if !ok || a.IsSystemAccount {
		return shared.ErrAccountNotFound
	}
	delete(s.state.accounts, code)
	return nil
}

func (s *Store) HasActivity(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.state.lines {
		if l.AccountCode == code {
			return true, nil
		}
	}
	return false, nil
}
