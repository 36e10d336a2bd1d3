package accounting_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

var jan31 = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store   *memstore.Store
	service *accounting.Service
	audit   *common.MemoryAuditLog
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memstore.New()
	store.SeedAccounts(accounts.DefaultChart()...)
	audit := &common.MemoryAuditLog{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := accounting.NewService(store, nil, audit, logger)
	svc.WithNow(func() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC) })
	return fixture{store: store, service: svc, audit: audit}
}

func cashSale(amount string) accounting.PostingInput {
	return accounting.PostingInput{
		Prefix:      accounting.PrefixManual,
		Date:        jan31,
		Reference:   accounting.ManualRef{Key: "test"},
		Description: "cash sale",
		Lines: []accounting.JournalLine{
			accounting.NewDebit(accounts.CodeCash, d(amount), ""),
			accounting.NewCredit(accounts.CodeSalesRevenue, d(amount), ""),
		},
	}
}

func TestPostAssignsNumberAndUpdatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := common.ContextWithActor(context.Background(), "alice")

	number, err := f.service.Post(ctx, cashSale("150.25"))
	require.NoError(t, err)
	require.Equal(t, accounting.TransactionNumber("JE-20240131-001"), number)

	second, err := f.service.Post(ctx, cashSale("10"))
	require.NoError(t, err)
	require.Equal(t, accounting.TransactionNumber("JE-20240131-002"), second)

	lines, err := f.service.GetTransaction(ctx, number)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Equal(t, "alice", l.CreatedBy)
		assert.Equal(t, "cash sale", l.Description)
		assert.Equal(t, accounting.ManualRef{Key: "test"}, l.Reference)
	}

	cash, _ := f.store.Account(accounts.CodeCash)
	revenue, _ := f.store.Account(accounts.CodeSalesRevenue)
	assert.True(t, cash.CurrentBalance.Equal(d("160.25")), cash.CurrentBalance.String())
	assert.True(t, revenue.CurrentBalance.Equal(d("160.25")), revenue.CurrentBalance.String())
	assert.Equal(t, []string{"journal.post", "journal.post"}, f.audit.Actions())
}

func TestPostValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unbalanced := cashSale("100")
	unbalanced.Lines[1] = accounting.NewCredit(accounts.CodeSalesRevenue, d("99"), "")

	bothSides := cashSale("100")
	bothSides.Lines[0].Credit = d("1")

	negative := cashSale("100")
	negative.Lines[0].Debit = d("-100")

	precise := cashSale("100.005")

	unknown := cashSale("100")
	unknown.Lines[0].AccountCode = "9999"

	single := cashSale("100")
	single.Lines = single.Lines[:1]

	noPrefix := cashSale("100")
	noPrefix.Prefix = ""

	cases := []struct {
		name  string
		input accounting.PostingInput
		want  error
	}{
		{"unbalanced", unbalanced, shared.ErrUnbalanced},
		{"both sides", bothSides, shared.ErrOneSidedLine},
		{"negative", negative, shared.ErrNegativeAmount},
		{"three decimals", precise, shared.ErrAmountPrecision},
		{"unknown account", unknown, shared.ErrAccountNotFound},
		{"single line", single, shared.ErrTooFewLines},
		{"missing prefix", noPrefix, shared.ErrInvalidTransactionNumber},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Post(ctx, tc.input)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Empty(t, f.store.Lines())
}

func TestPostRejectsInactiveAccount(t *testing.T) {
	f := newFixture(t)
	reg := accounts.NewRegistry(f.store, nil)
	cash, err := reg.GetAccountByCode(context.Background(), accounts.CodeCash)
	require.NoError(t, err)
	cash.IsActive = false
	_, err = reg.UpdateAccount(context.Background(), cash)
	require.NoError(t, err)

	_, err = f.service.Post(context.Background(), cashSale("5"))
	require.ErrorIs(t, err, shared.ErrAccountInactive)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestPostCallerSuppliedNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := cashSale("20")
	in.Number = "JE-20240131-042"
	number, err := f.service.Post(ctx, in)
	require.NoError(t, err)
	require.Equal(t, in.Number, number)

	_, err = f.service.Post(ctx, in)
	require.ErrorIs(t, err, shared.ErrDuplicateTransaction)

	in.Number = "nonsense"
	_, err = f.service.Post(ctx, in)
	require.ErrorIs(t, err, shared.ErrInvalidTransactionNumber)

	for _, foreign := range []accounting.TransactionNumber{"SALE-20240131-001", "CLOSE-REV-20240131-001"} {
		in.Number = foreign
		_, err = f.service.Post(ctx, in)
		require.ErrorIs(t, err, shared.ErrInvalidTransactionNumber, string(foreign))
		require.ErrorIs(t, err, shared.ErrValidation)
	}

	next, err := f.service.Post(ctx, cashSale("1"))
	require.NoError(t, err)
	require.Equal(t, accounting.TransactionNumber("JE-20240131-043"), next)
}

func TestNumberCollisionRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Post(ctx, cashSale("1"))
	require.NoError(t, err)
	f.store.SeedLines(
		accounting.JournalLine{TransactionNumber: "JE-20240131-002", Date: jan31, AccountCode: accounts.CodeCash, Debit: d("1"), Credit: decimal.Zero},
		accounting.JournalLine{TransactionNumber: "JE-20240131-002", Date: jan31, AccountCode: accounts.CodeSalesRevenue, Debit: decimal.Zero, Credit: d("1")},
	)

	number, err := f.service.NextTransactionNumber(ctx, accounting.PrefixManual, jan31)
	require.NoError(t, err)
	require.Equal(t, accounting.TransactionNumber("JE-20240131-003"), number)
}

func TestConcurrentPostsGetDistinctNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[accounting.TransactionNumber]struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := f.service.Post(ctx, cashSale("1"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[number] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, numbers, n)

	cash, _ := f.store.Account(accounts.CodeCash)
	require.True(t, cash.CurrentBalance.Equal(d("20")))
}

func TestPostIntoClosedPeriod(t *testing.T) {
	f := newFixture(t)
	closedAt := jan31
	f.store.SeedPeriod(accounting.FinancialPeriod{
		Name:      "January 2024",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   jan31,
		IsClosed:  true,
		ClosedAt:  &closedAt,
	})

	_, err := f.service.Post(context.Background(), cashSale("5"))
	require.ErrorIs(t, err, shared.ErrPeriodClosed)

	feb := cashSale("5")
	feb.Date = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.service.Post(context.Background(), feb)
	require.NoError(t, err)
}

func TestReverseOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := accounting.PostingInput{
		Prefix:    accounting.PrefixManual,
		Date:      jan31,
		Reference: accounting.ManualRef{Key: "multi"},
		Lines: []accounting.JournalLine{
			accounting.NewDebit(accounts.CodeAccountsReceivable, d("1050"), ""),
			accounting.NewDebit(accounts.CodeSalesDiscounts, d("50"), ""),
			accounting.NewCredit(accounts.CodeSalesRevenue, d("1000"), ""),
			accounting.NewCredit(accounts.CodeShippingRevenue, d("20"), ""),
			accounting.NewCredit(accounts.CodeSalesTaxPayable, d("80"), ""),
		},
	}
	original, err := f.service.Post(ctx, in)
	require.NoError(t, err)

	reversal, err := f.service.Reverse(ctx, accounting.ReverseInput{Number: original, Reason: "entered twice"})
	require.NoError(t, err)
	require.Equal(t, accounting.PrefixReversal, reversal.Prefix())

	lines, err := f.service.GetTransaction(ctx, reversal)
	require.NoError(t, err)
	require.Len(t, lines, 5)
	require.Equal(t, accounting.ReversalRef{Original: original}, lines[0].Reference)
	require.Equal(t, "Reversal of "+string(original)+": entered twice", lines[0].Description)

	for _, code := range []string{
		accounts.CodeAccountsReceivable, accounts.CodeSalesDiscounts, accounts.CodeSalesRevenue,
		accounts.CodeShippingRevenue, accounts.CodeSalesTaxPayable,
	} {
		balance, err := f.service.Balances().GetBalance(ctx, code, nil)
		require.NoError(t, err)
		assert.True(t, balance.IsZero(), "%s nets to %s", code, balance)
		cached, _ := f.store.Account(code)
		assert.True(t, cached.CurrentBalance.IsZero(), "%s cache %s", code, cached.CurrentBalance)
	}

	_, err = f.service.Reverse(ctx, accounting.ReverseInput{Number: original})
	require.ErrorIs(t, err, shared.ErrAlreadyReversed)

	_, err = f.service.Reverse(ctx, accounting.ReverseInput{Number: "JE-20240131-099"})
	require.ErrorIs(t, err, shared.ErrJournalNotFound)
}

func TestBalanceMatchesSignedSum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	post := func(date time.Time, lines ...accounting.JournalLine) {
		_, err := f.service.Post(ctx, accounting.PostingInput{
			Prefix: accounting.PrefixManual, Date: date, Reference: accounting.ManualRef{Key: "t"}, Lines: lines,
		})
		require.NoError(t, err)
	}
	feb := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	post(jan31, accounting.NewDebit(accounts.CodeCash, d("300"), ""), accounting.NewCredit(accounts.CodeSalesRevenue, d("300"), ""))
	post(jan31, accounting.NewDebit(accounts.CodeOperatingExpenses, d("120.50"), ""), accounting.NewCredit(accounts.CodeCash, d("120.50"), ""))
	post(feb, accounting.NewDebit(accounts.CodeCash, d("40"), ""), accounting.NewCredit(accounts.CodeSalesRevenue, d("40"), ""))

	cash, err := f.service.Balances().GetBalance(ctx, accounts.CodeCash, nil)
	require.NoError(t, err)
	require.True(t, cash.Equal(d("219.50")), cash.String())

	asOf := jan31
	cashJan, err := f.service.Balances().GetBalance(ctx, accounts.CodeCash, &asOf)
	require.NoError(t, err)
	require.True(t, cashJan.Equal(d("179.50")), cashJan.String())

	revenue, err := f.service.Balances().GetBalance(ctx, accounts.CodeSalesRevenue, nil)
	require.NoError(t, err)
	require.True(t, revenue.Equal(d("340")), revenue.String())

	_, err = f.service.Balances().GetBalance(ctx, "9999", nil)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)

	tb, err := f.service.TrialBalance(ctx, nil, nil)
	require.NoError(t, err)
	require.True(t, tb.Balanced)
	require.True(t, tb.TotalDebit.Equal(d("460.50")))
}

func TestRecalculateAllRepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.Fail = func(op string) error {
		if op == "adjust_balance" {
			return errors.New("cache unavailable")
		}
		return nil
	}
	_, err := f.service.Post(ctx, cashSale("75"))
	require.NoError(t, err, "cache failures must not fail a committed posting")
	f.store.Fail = nil

	cash, _ := f.store.Account(accounts.CodeCash)
	require.True(t, cash.CurrentBalance.IsZero())

	report, err := f.service.Balances().RecalculateAll(ctx)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 2)
	require.Equal(t, accounts.CodeCash, report.Drifts[0].AccountCode)
	require.True(t, report.Drifts[0].Actual.Equal(d("75")))

	cash, _ = f.store.Account(accounts.CodeCash)
	require.True(t, cash.CurrentBalance.Equal(d("75")))

	again, err := f.service.Balances().RecalculateAll(ctx)
	require.NoError(t, err)
	require.Empty(t, again.Drifts)
}

func TestPostRollsBackOnWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.store.Fail = func(op string) error {
		if op == "insert_lines" {
			return errors.New("disk full")
		}
		return nil
	}
	_, err := f.service.Post(context.Background(), cashSale("5"))
	require.EqualError(t, err, "accounting: insert lines: disk full")
	require.Empty(t, f.store.Lines())
}

func TestPostHonoursDeadline(t *testing.T) {
	f := newFixture(t)
	f.service.WithTimeout(time.Second)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := f.service.Post(ctx, cashSale("5"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, f.store.Lines())
}

func TestListLinesAndUnbalanced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Post(ctx, cashSale("10"))
	require.NoError(t, err)
	f.store.SeedLines(
		accounting.JournalLine{TransactionNumber: "JE-20240131-050", Date: jan31, AccountCode: accounts.CodeCash, Debit: d("10"), Credit: decimal.Zero},
		accounting.JournalLine{TransactionNumber: "JE-20240131-050", Date: jan31, AccountCode: accounts.CodeSalesRevenue, Debit: decimal.Zero, Credit: d("9")},
	)

	lines, err := f.service.ListLines(ctx, accounting.LineFilter{AccountCode: accounts.CodeCash})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	from, to := jan31, jan31.AddDate(0, 0, -1)
	_, err = f.service.ListLines(ctx, accounting.LineFilter{From: &from, To: &to})
	require.ErrorIs(t, err, shared.ErrValidation)

	groups, err := f.service.UnbalancedTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, accounting.TransactionNumber("JE-20240131-050"), groups[0].Number)
}

func TestMetricsCountPostings(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	f.service.WithMetrics(accounting.NewMetrics(reg))

	_, err := f.service.Post(context.Background(), cashSale("3"))
	require.NoError(t, err)
	_, err = f.service.Post(context.Background(), cashSale("3.001"))
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	results := map[string]float64{}
	for _, fam := range families {
		if fam.GetName() != "ledger_postings_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" {
					results[lp.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	require.Equal(t, 1.0, results["posted"])
	require.Equal(t, 1.0, results["rejected"])
}

type gatedRepo struct {
	accounting.RepositoryPort
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRepo) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	g.entered <- struct{}{}
	<-g.release
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.RepositoryPort.WithTx(ctx, fn)
}

func TestSharedBalanceLookupSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Post(context.Background(), cashSale("250"))
	require.NoError(t, err)

	gated := &gatedRepo{RepositoryPort: f.store, entered: make(chan struct{}, 1), release: make(chan struct{})}
	calc := accounting.NewBalanceCalculator(gated, slog.New(slog.NewTextHandler(io.Discard, nil)))

	type result struct {
		balance decimal.Decimal
		err     error
	}
	first, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan result, 1)
	go func() {
		b, err := calc.GetBalance(first, accounts.CodeCash, nil)
		firstDone <- result{b, err}
	}()
	<-gated.entered

	cancelFirst()
	res := <-firstDone
	require.ErrorIs(t, res.err, context.Canceled)

	secondDone := make(chan result, 1)
	go func() {
		b, err := calc.GetBalance(context.Background(), accounts.CodeCash, nil)
		secondDone <- result{b, err}
	}()
	time.Sleep(20 * time.Millisecond)
	close(gated.release)

	res = <-secondDone
	require.NoError(t, res.err)
	assert.True(t, res.balance.Equal(d("250")))
}
