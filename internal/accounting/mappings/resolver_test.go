package mappings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type mapLookup map[string]string

func (m mapLookup) MappedAccountCode(_ context.Context, module, key string) (string, error) {
	if code, ok := m[module+"/"+key]; ok {
		return code, nil
	}
	return "", shared.ErrMappingNotFound
}

type brokenLookup struct{}

func (brokenLookup) MappedAccountCode(context.Context, string, string) (string, error) {
	return "", errors.New("connection reset")
}

func TestResolvePrefersConfiguredMapping(t *testing.T) {
	ctx := context.Background()
	lookup := mapLookup{"SALES/REVENUE": "4010"}

	code, err := Resolve(ctx, lookup, "sales", "revenue")
	require.NoError(t, err)
	require.Equal(t, "4010", code)

	code, err = Resolve(ctx, lookup, ModuleSales, KeyAccountsReceivable)
	require.NoError(t, err)
	require.Equal(t, accounts.CodeAccountsReceivable, code)

	code, err = Resolve(ctx, nil, ModulePurchasing, KeyAccountsPayable)
	require.NoError(t, err)
	require.Equal(t, accounts.CodeAccountsPayable, code)
}

func TestResolveErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Resolve(ctx, mapLookup{}, ModuleSales, "UNKNOWN")
	require.ErrorIs(t, err, shared.ErrMappingNotFound)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = Resolve(ctx, brokenLookup{}, ModuleSales, KeySalesRevenue)
	require.EqualError(t, err, "connection reset")

	_, err = Resolve(ctx, nil, "", KeySalesRevenue)
	require.ErrorIs(t, err, shared.ErrValidation)
}
