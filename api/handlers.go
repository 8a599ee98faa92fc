/*
handlers.go - HTTP API handlers for the journal engine

PURPOSE:
  Exposes the ledger mutation and query engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the ledger façade.

ENDPOINTS:
  Service:
    GET    /api/health                 Service and evaluator health
    POST   /api/reload                 Force a ledger re-read
    GET    /api/statistics             File-level aggregates

  Entries:
    GET    /api/entries                List entries with filters
    POST   /api/entries                Create an entry
    GET    /api/entries/{id}           Get one entry
    PUT    /api/entries/{id}           Update an entry in place
    DELETE /api/entries/{id}           Delete an entry
    GET    /api/transactions           Transactions-only listing

  Queries:
    POST   /api/query                  Structured query via bean-query
    POST   /api/query/raw              Caller-written BQL, raw output

  Commodities:
    POST   /api/commodities            Declare a commodity
    PUT    /api/commodities/{symbol}   Merge commodity metadata

  Audit:
    GET    /api/audit                  Recent mutation records

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert DTOs to plain-data records
  3. Call the ledger façade
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, rejected queries
  - 404: Entry not found (including stale ids)
  - 409: Duplicate commodity
  - 500: Fatal outcomes (write failures, evaluator missing)
  - 504: Query timeout

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  The server binds to localhost by default.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ledger/outcome.go: The error taxonomy these statuses map from
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/draftmark/journal-engine/beanquery"
	"github.com/draftmark/journal-engine/journal"
	"github.com/draftmark/journal-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// AuditReader lists recorded mutations. Satisfied by store/sqlite.Store.
type AuditReader interface {
	ListMutations(ctx context.Context, limit int) ([]ledger.Mutation, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *ledger.Ledger

	// Session is the evaluator process wrapper. Nil when detection
	// failed at startup; query endpoints then report a fatal outcome
	// while entry CRUD keeps working.
	Session *beanquery.Session

	// Audit is the mutation log reader. Nil disables /api/audit.
	Audit AuditReader
}

// NewHandler creates a new handler over the ledger façade.
func NewHandler(l *ledger.Ledger, session *beanquery.Session, audit AuditReader) *Handler {
	return &Handler{Ledger: l, Session: session, Audit: audit}
}

// =============================================================================
// SERVICE ENDPOINTS
// =============================================================================

// Health reports service status and evaluator availability.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dto := HealthDTO{
		Status:     "ok",
		LedgerPath: h.Ledger.Path(),
	}

	if h.Session == nil {
		dto.Status = "degraded"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.Session.Health(ctx); err != nil {
			dto.Status = "degraded"
		} else {
			dto.Evaluator = true
			dto.Version = h.Session.Version()
			dto.Compat = h.Session.Compat()
		}
		dto.LastChecked = h.Session.LastChecked().UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, dto)
}

// Reload discards the cached snapshot and re-reads the ledger file.
// POST /api/reload
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Ledger.Reload()
	if err != nil {
		writeOperationError(w, "Failed to reload ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"total_entries": len(snap.Directives),
	})
}

// GetStatistics returns file-level aggregates.
// GET /api/statistics
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Ledger.Statistics()
	if err != nil {
		writeOperationError(w, "Failed to compute statistics", err)
		return
	}

	dto := StatisticsDTO{
		FilePath:     stats.FilePath,
		TotalEntries: stats.TotalEntries,
		ByType:       make(map[string]int, len(stats.ByKind)),
		AccountCount: stats.AccountCount,
	}
	for kind, n := range stats.ByKind {
		dto.ByType[string(kind)] = n
	}
	if !stats.FirstDate.IsZero() {
		dto.FirstDate = journal.FormatDate(stats.FirstDate)
		dto.LastDate = journal.FormatDate(stats.LastDate)
	}
	if !stats.LastLoaded.IsZero() {
		dto.LastLoaded = stats.LastLoaded.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ENTRY ENDPOINTS
// =============================================================================

// ListEntries returns a filtered, paginated page of entries.
// GET /api/entries?types=transaction,balance&start_date=...&account=...
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := entriesFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	page, err := h.Ledger.Entries(filter)
	if err != nil {
		writeOperationError(w, "Failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, toEntriesPageDTO(page))
}

// ListTransactions is the entries listing restricted to transactions.
// GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := entriesFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	filter.Kinds = []journal.Kind{journal.KindTransaction}

	page, err := h.Ledger.Entries(filter)
	if err != nil {
		writeOperationError(w, "Failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, toEntriesPageDTO(page))
}

// GetEntry returns one entry by content-derived id.
// GET /api/entries/{id}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := journal.EntryID(chi.URLParam(r, "id"))

	d, err := h.Ledger.Entry(id)
	if err != nil {
		writeOperationError(w, "Entry not found", err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryDTO(d))
}

// CreateEntry appends a new directive to the ledger file.
// POST /api/entries
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var (
		id  journal.EntryID
		err error
	)

	switch req.Type {
	case string(journal.KindTransaction):
		id, err = h.Ledger.CreateTransaction(ctx, transactionRecord(req))
	case string(journal.KindBalance):
		id, err = h.Ledger.CreateBalance(ctx, balanceRecord(req))
	case string(journal.KindNote):
		id, err = h.Ledger.CreateNote(ctx, noteRecord(req))
	case string(journal.KindPad):
		id, err = h.Ledger.CreatePad(ctx, padRecord(req))
	case string(journal.KindOpen):
		id, err = h.Ledger.CreateOpen(ctx, openRecord(req))
	case string(journal.KindClose):
		id, err = h.Ledger.CreateClose(ctx, closeRecord(req))
	default:
		writeError(w, http.StatusBadRequest, "Unknown entry type: "+req.Type, nil)
		return
	}
	if err != nil {
		writeOperationError(w, "Failed to create entry", err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateEntryResponse{ID: string(id)})
}

// UpdateEntry replaces a directive's lines in place. The request type
// must match the existing entry's kind.
// PUT /api/entries/{id}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := journal.EntryID(chi.URLParam(r, "id"))

	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var (
		newID journal.EntryID
		err   error
	)

	switch req.Type {
	case string(journal.KindTransaction):
		newID, err = h.Ledger.UpdateTransaction(ctx, id, transactionRecord(req))
	case string(journal.KindBalance):
		newID, err = h.Ledger.UpdateBalance(ctx, id, balanceRecord(req))
	case string(journal.KindNote):
		newID, err = h.Ledger.UpdateNote(ctx, id, noteRecord(req))
	case string(journal.KindPad):
		newID, err = h.Ledger.UpdatePad(ctx, id, padRecord(req))
	default:
		writeError(w, http.StatusBadRequest, "Entry type not updatable: "+req.Type, nil)
		return
	}
	if err != nil {
		writeOperationError(w, "Failed to update entry", err)
		return
	}

	writeJSON(w, http.StatusOK, UpdateEntryResponse{ID: string(newID)})
}

// DeleteEntry removes a directive and closes the gap it leaves.
// DELETE /api/entries/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := journal.EntryID(chi.URLParam(r, "id"))

	if err := h.Ledger.DeleteEntry(r.Context(), id); err != nil {
		writeOperationError(w, "Failed to delete entry", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// QUERY ENDPOINTS
// =============================================================================

// RunQuery evaluates a structured query through bean-query.
// POST /api/query
func (h *Handler) RunQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	spec, err := querySpecFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query", err)
		return
	}

	res, err := h.Ledger.Query(r.Context(), spec)
	if err != nil {
		writeOperationError(w, "Query failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toQueryResultDTO(res))
}

// RunRawQuery forwards a caller-written query string unmodified and
// returns the evaluator's raw output.
// POST /api/query/raw
func (h *Handler) RunRawQuery(w http.ResponseWriter, r *http.Request) {
	var req RawQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Query must not be empty", nil)
		return
	}

	out, err := h.Ledger.RunRaw(r.Context(), req.Query)
	if err != nil {
		writeOperationError(w, "Query failed", err)
		return
	}

	writeJSON(w, http.StatusOK, RawQueryResponse{Output: out})
}

// =============================================================================
// COMMODITY ENDPOINTS
// =============================================================================

// CreateCommodity appends a commodity declaration.
// POST /api/commodities
func (h *Handler) CreateCommodity(w http.ResponseWriter, r *http.Request) {
	var req CommodityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.Ledger.CreateCommodity(r.Context(), req.Symbol, req.Metadata, req.Date)
	if err != nil {
		writeOperationError(w, "Failed to create commodity", err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateEntryResponse{ID: string(id)})
}

// UpdateCommodity merges metadata into an existing commodity declaration.
// PUT /api/commodities/{symbol}
func (h *Handler) UpdateCommodity(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var req CommodityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.Ledger.UpdateCommodityMetadata(r.Context(), symbol, req.Metadata)
	if err != nil {
		writeOperationError(w, "Failed to update commodity", err)
		return
	}

	writeJSON(w, http.StatusOK, UpdateEntryResponse{ID: string(id)})
}

// =============================================================================
// AUDIT ENDPOINTS
// =============================================================================

// ListAudit returns recent mutation records, newest first.
// GET /api/audit?limit=50
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeJSON(w, http.StatusOK, []MutationDTO{})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit: "+raw, nil)
			return
		}
		limit = n
	}

	ms, err := h.Audit.ListMutations(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read audit log", err)
		return
	}

	writeJSON(w, http.StatusOK, toMutationDTOs(ms))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeOperationError maps a façade error onto an HTTP status using the
// outcome taxonomy. Recoverable outcomes become 4xx, fatal ones 5xx.
func writeOperationError(w http.ResponseWriter, message string, err error) {
	outcome := ledger.Classify(err)
	resp := ErrorResponse{Error: message, Details: outcome.Message}

	status := http.StatusInternalServerError
	switch {
	case ledger.IsValidation(err):
		status = http.StatusBadRequest
		resp.Code = "validation"
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			resp.Details = verr.Problems
		}
	case journal.IsNotFound(err):
		status = http.StatusNotFound
		resp.Code = "not_found"
	case errors.Is(err, ledger.ErrDuplicateCommodity):
		status = http.StatusConflict
		resp.Code = "duplicate"
	case errors.Is(err, beanquery.ErrQueryTimeout):
		status = http.StatusGatewayTimeout
		resp.Code = "query_timeout"
	case errors.Is(err, beanquery.ErrQueryFailed):
		status = http.StatusBadRequest
		resp.Code = "query_rejected"
	case outcome.Kind == ledger.OutcomeRecoverable:
		status = http.StatusBadRequest
	}

	writeJSON(w, status, resp)
}

// entriesFilterFromQuery parses the listing filter from URL parameters.
func entriesFilterFromQuery(r *http.Request) (ledger.EntriesFilter, error) {
	q := r.URL.Query()
	var filter ledger.EntriesFilter

	if raw := q.Get("types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			kind, ok := journal.ParseKind(part)
			if !ok {
				return filter, errors.New("unknown entry type: " + part)
			}
			filter.Kinds = append(filter.Kinds, kind)
		}
	}

	var err error
	if raw := q.Get("start_date"); raw != "" {
		if filter.StartDate, err = journal.ParseDate(raw); err != nil {
			return filter, err
		}
	}
	if raw := q.Get("end_date"); raw != "" {
		if filter.EndDate, err = journal.ParseDate(raw); err != nil {
			return filter, err
		}
	}

	filter.Account = q.Get("account")
	filter.Payee = q.Get("payee")
	filter.Tag = q.Get("tag")
	filter.Search = q.Get("search")

	if raw := q.Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil {
			return filter, errors.New("invalid limit: " + raw)
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if filter.Offset, err = strconv.Atoi(raw); err != nil {
			return filter, errors.New("invalid offset: " + raw)
		}
	}

	return filter, nil
}

func querySpecFromRequest(req QueryRequest) (beanquery.QuerySpec, error) {
	var spec beanquery.QuerySpec

	for _, t := range req.Types {
		kind, ok := journal.ParseKind(t)
		if !ok {
			return spec, errors.New("unknown entry type: " + t)
		}
		spec.Kinds = append(spec.Kinds, kind)
	}

	var err error
	if req.StartDate != "" {
		if spec.StartDate, err = journal.ParseDate(req.StartDate); err != nil {
			return spec, err
		}
	}
	if req.EndDate != "" {
		if spec.EndDate, err = journal.ParseDate(req.EndDate); err != nil {
			return spec, err
		}
	}

	spec.Account = req.Account
	spec.Payee = req.Payee
	spec.Search = req.Search
	spec.Tag = req.Tag
	spec.Limit = req.Limit
	spec.Offset = req.Offset
	return spec, nil
}
