// Package memstore keeps the ledger in process memory. It implements the
// same ports as the Postgres repositories, including rollback on error, and
// backs the unit tests of every ledger package.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type document struct {
	number    accounting.TransactionNumber
	generated bool
}

type state struct {
	accounts      map[string]accounts.Account
	nextAccountID int64
	lines         []accounting.JournalLine
	nextLineID    int64
	sequences     map[string]int
	reversals     map[accounting.TransactionNumber]accounting.TransactionNumber
	periods       map[int64]accounting.FinancialPeriod
	nextPeriodID  int64
	settings      accounting.CompanySettings
	mappings      map[string]string
	documents     map[string]*document
}

func (s *state) clone() *state {
	out := &state{
		accounts:      make(map[string]accounts.Account, len(s.accounts)),
		nextAccountID: s.nextAccountID,
		lines:         append([]accounting.JournalLine(nil), s.lines...),
		nextLineID:    s.nextLineID,
		sequences:     make(map[string]int, len(s.sequences)),
		reversals:     make(map[accounting.TransactionNumber]accounting.TransactionNumber, len(s.reversals)),
		periods:       make(map[int64]accounting.FinancialPeriod, len(s.periods)),
		nextPeriodID:  s.nextPeriodID,
		settings:      s.settings,
		mappings:      make(map[string]string, len(s.mappings)),
		documents:     make(map[string]*document, len(s.documents)),
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	for k, v := range s.reversals {
		out.reversals[k] = v
	}
	for k, v := range s.periods {
		out.periods[k] = v
	}
	for k, v := range s.mappings {
		out.mappings[k] = v
	}
	for k, v := range s.documents {
		d := *v
		out.documents[k] = &d
	}
	if s.settings.CurrentPeriodID != nil {
		id := *s.settings.CurrentPeriodID
		out.settings.CurrentPeriodID = &id
	}
	return out
}

// Store is an in-memory ledger database.
type Store struct {
	mu    sync.Mutex
	state *state

	// Fail, when set, is consulted before every write; a non-nil error aborts
	// the operation and rolls back the surrounding transaction.
	Fail func(op string) error
}

// New returns an empty store.
func New() *Store {
	return &Store{state: &state{
		accounts:  make(map[string]accounts.Account),
		sequences: make(map[string]int),
		reversals: make(map[accounting.TransactionNumber]accounting.TransactionNumber),
		periods:   make(map[int64]accounting.FinancialPeriod),
		mappings:  make(map[string]string),
		documents: make(map[string]*document),
	}}
}

// WithTx runs fn against a copy of the state and publishes it only on success.
// Transactions are serialised.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	working := s.state.clone()
	if err := fn(ctx, &tx{store: s, st: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

// SeedAccounts installs accounts directly, marking them active.
func (s *Store) SeedAccounts(list ...accounts.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range list {
		s.state.nextAccountID++
		a.ID = s.state.nextAccountID
		a.IsActive = true
		if a.CurrentBalance.IsZero() {
			a.CurrentBalance = decimal.Zero
		}
		s.state.accounts[a.Code] = a
	}
}

// SeedLines appends lines verbatim, bypassing every ledger rule. Used to
// stage corrupt data for integrity tests.
func (s *Store) SeedLines(lines ...accounting.JournalLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lines {
		s.state.nextLineID++
		l.ID = s.state.nextLineID
		if l.Reference == nil {
			l.Reference = accounting.ManualRef{Key: "seed"}
		}
		s.state.lines = append(s.state.lines, l)
	}
}

// SeedPeriod stores a period and returns it with its id.
func (s *Store) SeedPeriod(p accounting.FinancialPeriod) accounting.FinancialPeriod {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.nextPeriodID++
	p.ID = s.state.nextPeriodID
	s.state.periods[p.ID] = p
	return p
}

// SetMapping stores an account mapping.
func (s *Store) SetMapping(module, key, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.mappings[module+"/"+key] = code
}

// AddDocument registers an unposted source document.
func (s *Store) AddDocument(ref accounting.Reference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.documents[ref.String()] = &document{}
}

// Document reports the posting flag of a source document.
func (s *Store) Document(ref accounting.Reference) (accounting.TransactionNumber, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.state.documents[ref.String()]
	if !ok {
		return "", false
	}
	return d.number, d.generated
}

// Lines returns a copy of every stored line.
func (s *Store) Lines() []accounting.JournalLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]accounting.JournalLine(nil), s.state.lines...)
}

// Account returns the stored account including its cached balance.
func (s *Store) Account(code string) (accounts.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.state.accounts[code]
	return a, ok
}

// Settings returns the company settings row.
func (s *Store) Settings() accounting.CompanySettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone().settings
}

// Period returns a stored period.
func (s *Store) Period(id int64) (accounting.FinancialPeriod, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.periods[id]
	return p, ok
}

type tx struct {
	store *Store
	st    *state
}

func (t *tx) GetAccount(_ context.Context, code string) (accounts.Account, error) {
	a, ok := t.st.accounts[code]
	if !ok {
		return accounts.Account{}, fmt.Errorf("%w: %s", shared.ErrAccountNotFound, code)
	}
	return a, nil
}

func (t *tx) ListAccounts(_ context.Context, filter accounts.ListFilter) ([]accounts.Account, error) {
	return listAccounts(t.st, filter), nil
}

func listAccounts(st *state, filter accounts.ListFilter) []accounts.Account {
	var out []accounts.Account
	for _, a := range st.accounts {
		if filter.Match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (t *tx) AdjustCachedBalance(_ context.Context, code string, delta decimal.Decimal) error {
	if err := t.store.fail("adjust_balance"); err != nil {
		return err
	}
	a, ok := t.st.accounts[code]
	if !ok {
		return nil
	}
	a.CurrentBalance = a.CurrentBalance.Add(delta)
	t.st.accounts[code] = a
	return nil
}

func (t *tx) SetCachedBalance(_ context.Context, code string, balance decimal.Decimal) error {
	if err := t.store.fail("set_balance"); err != nil {
		return err
	}
	a, ok := t.st.accounts[code]
	if !ok {
		return nil
	}
	a.CurrentBalance = balance
	t.st.accounts[code] = a
	return nil
}

func (t *tx) InsertLines(_ context.Context, lines []accounting.JournalLine) error {
	if err := t.store.fail("insert_lines"); err != nil {
		return err
	}
	for _, l := range lines {
		t.st.nextLineID++
		l.ID = t.st.nextLineID
		t.st.lines = append(t.st.lines, l)
	}
	return nil
}

func (t *tx) TransactionExists(_ context.Context, number accounting.TransactionNumber) (bool, error) {
	for _, l := range t.st.lines {
		if l.TransactionNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) NextSequence(_ context.Context, prefix accounting.Prefix, day time.Time) (int, error) {
	stem := fmt.Sprintf("%s-%s-", prefix, day.Format("20060102"))
	if last, ok := t.st.sequences[stem]; ok {
		t.st.sequences[stem] = last + 1
		return last + 1, nil
	}
	highest := 0
	for _, l := range t.st.lines {
		rest, ok := strings.CutPrefix(string(l.TransactionNumber), stem)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > highest {
			highest = n
		}
	}
	t.st.sequences[stem] = highest + 1
	return highest + 1, nil
}

func (t *tx) LinesByTransaction(_ context.Context, number accounting.TransactionNumber) ([]accounting.JournalLine, error) {
	var out []accounting.JournalLine
	for _, l := range t.st.lines {
		if l.TransactionNumber == number {
			out = append(out, l)
		}
	}
	return out, nil
}

func (t *tx) ListLines(_ context.Context, filter accounting.LineFilter) ([]accounting.JournalLine, error) {
	var out []accounting.JournalLine
	for _, l := range t.st.lines {
		if filter.AccountCode != "" && l.AccountCode != filter.AccountCode {
			continue
		}
		if !inRange(l.Date, filter.From, filter.To) {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (t *tx) CountLines(context.Context) (int, error) {
	return len(t.st.lines), nil
}

func (t *tx) CountLinesAfter(_ context.Context, date time.Time) (int, error) {
	n := 0
	for _, l := range t.st.lines {
		if day(l.Date).After(day(date)) {
			n++
		}
	}
	return n, nil
}

func (t *tx) RecordReversal(_ context.Context, original, reversal accounting.TransactionNumber) error {
	if _, ok := t.st.reversals[original]; ok {
		return fmt.Errorf("%w: %s", shared.ErrAlreadyReversed, original)
	}
	t.st.reversals[original] = reversal
	return nil
}

func (t *tx) FindReversal(_ context.Context, original accounting.TransactionNumber) (accounting.TransactionNumber, bool, error) {
	r, ok := t.st.reversals[original]
	return r, ok, nil
}

func (t *tx) SumAccount(_ context.Context, code string, from, to *time.Time) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range t.st.lines {
		if l.AccountCode != code || !inRange(l.Date, from, to) {
			continue
		}
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit, nil
}

func (t *tx) SumAll(_ context.Context, from, to *time.Time) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range t.st.lines {
		if !inRange(l.Date, from, to) {
			continue
		}
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit, nil
}

func (t *tx) AccountTotals(_ context.Context, from, to *time.Time) ([]accounting.AccountTotals, error) {
	byCode := make(map[string]*accounting.AccountTotals)
	for _, l := range t.st.lines {
		if !inRange(l.Date, from, to) {
			continue
		}
		tot, ok := byCode[l.AccountCode]
		if !ok {
			tot = &accounting.AccountTotals{AccountCode: l.AccountCode, Debit: decimal.Zero, Credit: decimal.Zero}
			byCode[l.AccountCode] = tot
		}
		tot.Debit = tot.Debit.Add(l.Debit)
		tot.Credit = tot.Credit.Add(l.Credit)
	}
	out := make([]accounting.AccountTotals, 0, len(byCode))
	for _, tot := range byCode {
		out = append(out, *tot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountCode < out[j].AccountCode })
	return out, nil
}

func (t *tx) UnbalancedTransactions(context.Context) ([]accounting.UnbalancedGroup, error) {
	groups := make(map[accounting.TransactionNumber]*accounting.UnbalancedGroup)
	var order []accounting.TransactionNumber
	for _, l := range t.st.lines {
		g, ok := groups[l.TransactionNumber]
		if !ok {
			g = &accounting.UnbalancedGroup{Number: l.TransactionNumber, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[l.TransactionNumber] = g
			order = append(order, l.TransactionNumber)
		}
		g.Debit = g.Debit.Add(l.Debit)
		g.Credit = g.Credit.Add(l.Credit)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	var out []accounting.UnbalancedGroup
	for _, n := range order {
		if g := groups[n]; !shared.IsBalanced(g.Debit, g.Credit) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (t *tx) GetPeriod(_ context.Context, id int64) (accounting.FinancialPeriod, error) {
	p, ok := t.st.periods[id]
	if !ok {
		return accounting.FinancialPeriod{}, shared.ErrPeriodNotFound
	}
	return p, nil
}

func (t *tx) GetPeriodForUpdate(ctx context.Context, id int64) (accounting.FinancialPeriod, error) {
	return t.GetPeriod(ctx, id)
}

func (t *tx) ListPeriods(context.Context) ([]accounting.FinancialPeriod, error) {
	out := make([]accounting.FinancialPeriod, 0, len(t.st.periods))
	for _, p := range t.st.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (t *tx) InsertPeriod(_ context.Context, p accounting.FinancialPeriod) (accounting.FinancialPeriod, error) {
	if err := t.store.fail("insert_period"); err != nil {
		return accounting.FinancialPeriod{}, err
	}
	t.st.nextPeriodID++
	p.ID = t.st.nextPeriodID
	p.UpdatedAt = p.CreatedAt
	t.st.periods[p.ID] = p
	return p, nil
}

func (t *tx) UpdatePeriod(_ context.Context, p accounting.FinancialPeriod) error {
	if err := t.store.fail("update_period"); err != nil {
		return err
	}
	if _, ok := t.st.periods[p.ID]; !ok {
		return shared.ErrPeriodNotFound
	}
	t.st.periods[p.ID] = p
	return nil
}

func (t *tx) FindClosedPeriodCovering(_ context.Context, date time.Time) (accounting.FinancialPeriod, bool, error) {
	for _, p := range t.st.periods {
		if p.IsClosed && p.Contains(date) {
			return p, true, nil
		}
	}
	return accounting.FinancialPeriod{}, false, nil
}

// AdvisoryLock is a no-op: store transactions are already serialised.
func (t *tx) AdvisoryLock(context.Context, string) error {
	return nil
}

func (t *tx) GetSettings(context.Context) (accounting.CompanySettings, error) {
	return t.st.settings, nil
}

func (t *tx) SetCurrentPeriod(_ context.Context, periodID *int64) error {
	if err := t.store.fail("set_current_period"); err != nil {
		return err
	}
	t.st.settings.CurrentPeriodID = periodID
	return nil
}

func (t *tx) MappedAccountCode(_ context.Context, module, key string) (string, error) {
	code, ok := t.st.mappings[module+"/"+key]
	if !ok {
		return "", shared.ErrMappingNotFound
	}
	return code, nil
}

func (t *tx) MarkSourceGenerated(_ context.Context, ref accounting.Reference, number accounting.TransactionNumber) error {
	if err := t.store.fail("mark_source"); err != nil {
		return err
	}
	d, ok := t.st.documents[ref.String()]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrDocumentNotFound, ref)
	}
	if d.generated {
		return fmt.Errorf("%w: %s", shared.ErrSourceAlreadyLinked, ref)
	}
	d.generated = true
	d.number = number
	return nil
}

func inRange(date time.Time, from, to *time.Time) bool {
	d := day(date)
	if from != nil && d.Before(day(*from)) {
		return false
	}
	if to != nil && d.After(day(*to)) {
		return false
	}
	return true
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
