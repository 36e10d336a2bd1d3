package accounting_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func newLedgerServer(t *testing.T) (*httptest.Server, fixture) {
	t.Helper()
	f := newFixture(t)
	r := chi.NewRouter()
	accounting.NewHandler(nil, f.service, &common.MemoryIdempotency{}).MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, f
}

func call(t *testing.T, method, url, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

const manualEntry = `{"date":"2024-01-31","description":"owner investment","lines":[
	{"account_code":"1010","debit":"2500.00"},
	{"account_code":"3000","credit":"2500.00"}]}`

func TestJournalHandlers(t *testing.T) {
	srv, _ := newLedgerServer(t)
	key := map[string]string{accounting.IdempotencyHeader: "req-1"}

	status, body := call(t, http.MethodPost, srv.URL+"/journals", manualEntry, key)
	require.Equal(t, http.StatusCreated, status)
	number := body["transaction_number"].(string)
	require.Equal(t, "JE-20240131-001", number)

	status, body = call(t, http.MethodPost, srv.URL+"/journals", manualEntry, key)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "request already processed", body["detail"])

	status, body = call(t, http.MethodGet, srv.URL+"/journals/"+number, "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "2500", body["total_debit"])
	require.Len(t, body["lines"], 2)

	status, body = call(t, http.MethodGet, srv.URL+"/accounts/1010/balance", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "2500", body["balance"])

	status, body = call(t, http.MethodPost, srv.URL+"/journals/"+number+"/reverse", `{"reason":"wrong account"}`, nil)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "REV-20240201-001", body["transaction_number"])

	status, _ = call(t, http.MethodPost, srv.URL+"/journals/"+number+"/reverse", "", nil)
	require.Equal(t, http.StatusConflict, status)

	status, body = call(t, http.MethodGet, srv.URL+"/reports/trial-balance?to=2024-12-31", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["balanced"])
	require.Equal(t, "5000", body["total_debit"])
}

func TestJournalHandlerErrors(t *testing.T) {
	srv, f := newLedgerServer(t)
	key := map[string]string{accounting.IdempotencyHeader: "req-2"}

	unbalanced := `{"date":"2024-01-31","lines":[{"account_code":"1010","debit":"10"},{"account_code":"3000","credit":"9"}]}`
	status, body := call(t, http.MethodPost, srv.URL+"/journals", unbalanced, key)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body["detail"], "must balance")

	status, _ = call(t, http.MethodPost, srv.URL+"/journals", manualEntry, key)
	require.Equal(t, http.StatusCreated, status, "a failed request releases its key")

	status, _ = call(t, http.MethodPost, srv.URL+"/journals", `{"date":"31/01/2024","lines":[]}`, nil)
	require.Equal(t, http.StatusBadRequest, status)

	foreign := `{"date":"2024-01-31","number":"CLOSE-REV-20240131-001","lines":[{"account_code":"1010","debit":"10"},{"account_code":"3000","credit":"10"}]}`
	status, _ = call(t, http.MethodPost, srv.URL+"/journals", foreign, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, http.MethodGet, srv.URL+"/journals/JE-20240131-404", "", nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, http.MethodGet, srv.URL+"/lines?from=2024-02-01&to=2024-01-01", "", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, http.MethodGet, srv.URL+"/accounts/1010/balance?as_of=yesterday", "", nil)
	require.Equal(t, http.StatusBadRequest, status)

	require.Len(t, f.store.Lines(), 2)
}

func TestListLinesHandler(t *testing.T) {
	srv, _ := newLedgerServer(t)
	status, _ := call(t, http.MethodPost, srv.URL+"/journals", manualEntry, nil)
	require.Equal(t, http.StatusCreated, status)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/lines?account=1010&from=2024-01-01&to=2024-01-31", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lines []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lines))
	require.Len(t, lines, 1)
	require.Equal(t, "1010", lines[0]["account_code"])
	require.Equal(t, "MANUAL", lines[0]["reference_type"])
}
