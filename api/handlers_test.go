/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Entry CRUD round trips over the router
- Outcome-to-status mapping (validation 400, stale id 404, duplicate 409)
- Query endpoints when the evaluator is unavailable
- Audit listing and health reporting
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftmark/journal-engine/ledger"
)

const sampleLedger = `option "title" "Test Ledger"

2024-01-01 open Assets:Checking USD
2024-01-01 open Expenses:Food

2024-01-10 * "Hardware Store" "Paint and brushes"
  Expenses:Food  12.00 USD
  Assets:Checking

2024-02-01 balance Assets:Checking 100.00 USD

2024-02-10 note Assets:Checking "Called bank about fee"
`

// fakeAudit serves canned mutation records.
type fakeAudit struct {
	mutations []ledger.Mutation
}

func (a *fakeAudit) ListMutations(_ context.Context, limit int) ([]ledger.Mutation, error) {
	if limit > 0 && limit < len(a.mutations) {
		return a.mutations[:limit], nil
	}
	return a.mutations, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeAudit) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.ledger")
	require.NoError(t, os.WriteFile(path, []byte(sampleLedger), 0o644))

	audit := &fakeAudit{}
	h := NewHandler(ledger.New(path, ledger.Options{}), nil, audit)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, audit
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// =============================================================================
// ENTRY CRUD
// =============================================================================

func TestListEntries_ReturnsFixtureEntries(t *testing.T) {
	// GIVEN: The sample ledger
	// WHEN: Listing entries with no filter
	// THEN: The default kinds are returned, newest first

	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/entries", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.EqualValues(t, 3, body["total_count"])
	entries := body["entries"].([]any)
	require.Len(t, entries, 3)
	first := entries[0].(map[string]any)
	assert.Equal(t, "note", first["type"])
	assert.Equal(t, "2024-02-10", first["date"])
}

func TestCreateEntry_RoundTrip(t *testing.T) {
	// GIVEN: A valid transaction request
	// WHEN: POSTing then fetching by the returned id
	// THEN: 201 on create and the entry reads back with both postings

	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/entries", EntryRequest{
		Type:      "transaction",
		Date:      "2024-03-01",
		Payee:     "Grocery Store",
		Narration: "Weekly shopping",
		Postings: []PostingDTO{
			{Account: "Expenses:Food", Amount: "85.30", Currency: "USD"},
			{Account: "Assets:Checking"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	require.NotEmpty(t, id)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/entries/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Grocery Store", body["payee"])
	assert.Len(t, body["postings"].([]any), 2)
}

func TestCreateEntry_ValidationProblemsAre400(t *testing.T) {
	// GIVEN: A transaction with one posting and no narration
	// WHEN: POSTing it
	// THEN: 400 with code "validation" and the problem list

	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/entries", EntryRequest{
		Type: "transaction",
		Date: "2024-03-01",
		Postings: []PostingDTO{
			{Account: "Expenses:Food", Amount: "85.30", Currency: "USD"},
		},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", body["code"])
	assert.NotEmpty(t, body["details"])
}

func TestCreateEntry_UnknownTypeIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/entries", EntryRequest{
		Type: "price",
		Date: "2024-03-01",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetEntry_UnknownIDIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/entries/deadbeefdeadbeef", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestUpdateEntry_ReturnsNewContentID(t *testing.T) {
	// GIVEN: The fixture balance assertion
	// WHEN: Updating its amount in place
	// THEN: 200 with a different content-derived id

	srv, _ := newTestServer(t)

	_, listing := doJSON(t, http.MethodGet, srv.URL+"/api/entries?types=balance", nil)
	entries := listing["entries"].([]any)
	require.Len(t, entries, 1)
	oldID := entries[0].(map[string]any)["id"].(string)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/entries/"+oldID, EntryRequest{
		Type:     "balance",
		Date:     "2024-02-01",
		Account:  "Assets:Checking",
		Amount:   "120.00",
		Currency: "USD",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, oldID, body["id"])
}

func TestDeleteEntry_SecondDeleteIs404(t *testing.T) {
	// GIVEN: The fixture note
	// WHEN: Deleting it twice
	// THEN: First delete succeeds, second reports the id stale

	srv, _ := newTestServer(t)

	_, listing := doJSON(t, http.MethodGet, srv.URL+"/api/entries?types=note", nil)
	id := listing["entries"].([]any)[0].(map[string]any)["id"].(string)

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/api/entries/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/entries/"+id, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListTransactions_IgnoresOtherKinds(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/transactions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "transaction", entries[0].(map[string]any)["type"])
}

func TestListEntries_BadDateIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/entries?start_date=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// QUERIES, COMMODITIES, SERVICE
// =============================================================================

func TestRunQuery_WithoutEvaluatorIsFatal(t *testing.T) {
	// GIVEN: A handler with no query engine wired
	// WHEN: POSTing a structured query
	// THEN: 500 with install guidance in the details

	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/query", QueryRequest{Account: "Assets"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["details"], "bean-query")
}

func TestRunRawQuery_EmptyQueryIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/query/raw", RawQueryRequest{Query: "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateCommodity_DuplicateIs409(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/commodities", CommodityRequest{
		Symbol: "EUR",
		Date:   "2024-01-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/commodities", CommodityRequest{
		Symbol: "EUR",
		Date:   "2024-01-01",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate", body["code"])
}

func TestGetStatistics_CountsFixture(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/statistics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 5, body["total_entries"])
	assert.Equal(t, "2024-01-01", body["first_date"])
	assert.Equal(t, "2024-02-10", body["last_date"])
}

func TestHealth_DegradedWithoutSession(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["evaluator_available"])
}

func TestListAudit_ReturnsRecords(t *testing.T) {
	srv, audit := newTestServer(t)
	audit.mutations = []ledger.Mutation{
		{ID: "m2", EntryID: "bbb", Kind: "note", Op: "delete", FileHash: "h2", CreatedAt: time.Now()},
		{ID: "m1", EntryID: "aaa", Kind: "transaction", Op: "create", FileHash: "h1", CreatedAt: time.Now().Add(-time.Minute)},
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/audit?limit=1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dtos []MutationDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dtos))
	require.Len(t, dtos, 1)
	assert.Equal(t, "m2", dtos[0].ID)
}

func TestReload_PicksUpExternalEdits(t *testing.T) {
	// GIVEN: A file grown behind the server's back
	// WHEN: POSTing /api/reload
	// THEN: The reported entry count includes the new directive

	path := filepath.Join(t.TempDir(), "main.ledger")
	require.NoError(t, os.WriteFile(path, []byte(sampleLedger), 0o644))
	h := NewHandler(ledger.New(path, ledger.Options{}), nil, nil)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)

	appended := sampleLedger + "\n2024-03-05 close Expenses:Food\n"
	require.NoError(t, os.WriteFile(path, []byte(appended), 0o644))

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/reload", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 6, body["total_entries"])
}
