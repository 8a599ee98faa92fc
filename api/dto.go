/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal directive model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

ENTRY SHAPE:
  EntryRequest is flat and type-discriminated: one body shape for every
  directive kind, with the kind-specific fields simply left empty for
  the kinds that do not use them. EntryDTO mirrors that on the way out.

VALIDATION:
  Validation is done in the ledger façade, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/records.go: The plain-data records these convert to
*/
package api

import (
	"github.com/draftmark/journal-engine/beanquery"
	"github.com/draftmark/journal-engine/journal"
	"github.com/draftmark/journal-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EntryRequest is the request body for creating or updating an entry.
type EntryRequest struct {
	Type string `json:"type"`
	Date string `json:"date"`

	// transaction fields
	Flag      string       `json:"flag,omitempty"`
	Payee     string       `json:"payee,omitempty"`
	Narration string       `json:"narration,omitempty"`
	Tags      []string     `json:"tags,omitempty"`
	Links     []string     `json:"links,omitempty"`
	Postings  []PostingDTO `json:"postings,omitempty"`

	// balance fields
	Account   string `json:"account,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Currency  string `json:"currency,omitempty"`
	Tolerance string `json:"tolerance,omitempty"`

	// note fields
	Comment string `json:"comment,omitempty"`

	// pad fields
	SourceAccount string `json:"source_account,omitempty"`

	// open fields
	Currencies []string `json:"currencies,omitempty"`
	Booking    string   `json:"booking,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// PostingDTO is one account leg of a transaction.
type PostingDTO struct {
	Flag     string `json:"flag,omitempty"`
	Account  string `json:"account"`
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// EntryDTO represents one directive in API responses.
type EntryDTO struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Date      string `json:"date"`
	LineStart int    `json:"line_start"` // 1-based, as an editor shows them
	LineEnd   int    `json:"line_end"`

	Flag      string       `json:"flag,omitempty"`
	Payee     string       `json:"payee,omitempty"`
	Narration string       `json:"narration,omitempty"`
	Tags      []string     `json:"tags,omitempty"`
	Links     []string     `json:"links,omitempty"`
	Postings  []PostingDTO `json:"postings,omitempty"`

	Account   string `json:"account,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Currency  string `json:"currency,omitempty"`
	Tolerance string `json:"tolerance,omitempty"`

	Comment       string   `json:"comment,omitempty"`
	SourceAccount string   `json:"source_account,omitempty"`
	Currencies    []string `json:"currencies,omitempty"`
	Booking       string   `json:"booking,omitempty"`
	Symbol        string   `json:"symbol,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// EntriesPageDTO is one page of entries with pagination bookkeeping.
type EntriesPageDTO struct {
	Entries       []EntryDTO `json:"entries"`
	TotalCount    int        `json:"total_count"`
	ReturnedCount int        `json:"returned_count"`
	Offset        int        `json:"offset"`
	Limit         int        `json:"limit"`
	HasMore       bool       `json:"has_more"`
}

// CreateEntryResponse reports the new entry's id.
type CreateEntryResponse struct {
	ID string `json:"id"`
}

// UpdateEntryResponse reports the entry's new content-derived id.
type UpdateEntryResponse struct {
	ID string `json:"id"`
}

// QueryRequest is the structured query body.
type QueryRequest struct {
	Types     []string `json:"types,omitempty"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	Account   string   `json:"account,omitempty"`
	Payee     string   `json:"payee,omitempty"`
	Search    string   `json:"search,omitempty"`
	Tag       string   `json:"tag,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty"`
}

// QueryRowDTO is one typed evaluator row.
type QueryRowDTO struct {
	Type string `json:"type"`
	Date string `json:"date"`

	Flag      string   `json:"flag,omitempty"`
	Payee     string   `json:"payee,omitempty"`
	Narration string   `json:"narration,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Links     []string `json:"links,omitempty"`

	Account       string `json:"account,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	Comment       string `json:"comment,omitempty"`
	SourceAccount string `json:"source_account,omitempty"`
}

// QueryResultDTO is one page of query rows.
type QueryResultDTO struct {
	Rows          []QueryRowDTO `json:"rows"`
	TotalCount    int           `json:"total_count"`
	ReturnedCount int           `json:"returned_count"`
	Offset        int           `json:"offset"`
	Limit         int           `json:"limit"`
	HasMore       bool          `json:"has_more"`
}

// RawQueryRequest carries a caller-written query string.
type RawQueryRequest struct {
	Query string `json:"query"`
}

// RawQueryResponse is the evaluator's raw delimited output.
type RawQueryResponse struct {
	Output string `json:"output"`
}

// StatisticsDTO summarizes the ledger file.
type StatisticsDTO struct {
	FilePath     string         `json:"file_path"`
	TotalEntries int            `json:"total_entries"`
	ByType       map[string]int `json:"by_type"`
	FirstDate    string         `json:"first_date,omitempty"`
	LastDate     string         `json:"last_date,omitempty"`
	AccountCount int            `json:"account_count"`
	LastLoaded   string         `json:"last_loaded,omitempty"`
}

// CommodityRequest creates or updates a commodity declaration.
type CommodityRequest struct {
	Symbol   string            `json:"symbol,omitempty"` // path param wins on update
	Date     string            `json:"date,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MutationDTO is one audit record.
type MutationDTO struct {
	ID         string `json:"id"`
	EntryID    string `json:"entry_id"`
	Kind       string `json:"kind"`
	Operation  string `json:"operation"`
	SpanStart  int    `json:"span_start"`
	SpanEnd    int    `json:"span_end"`
	BackupPath string `json:"backup_path,omitempty"`
	FileHash   string `json:"file_hash"`
	Message    string `json:"message,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// HealthDTO reports service and evaluator session health.
type HealthDTO struct {
	Status      string `json:"status"` // ok or degraded
	LedgerPath  string `json:"ledger_path"`
	Evaluator   bool   `json:"evaluator_available"`
	Version     string `json:"evaluator_version,omitempty"`
	Compat      bool   `json:"compat_mode,omitempty"`
	LastChecked string `json:"evaluator_last_checked,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEntryDTO(d *journal.Directive) EntryDTO {
	dto := EntryDTO{
		ID:        string(d.ID),
		Type:      string(d.Kind),
		Date:      journal.FormatDate(d.Date),
		LineStart: d.Span.Start + 1,
		LineEnd:   d.Span.End + 1,
	}
	if len(d.Metadata) > 0 {
		dto.Metadata = d.Metadata.Map()
	}

	switch d.Kind {
	case journal.KindTransaction:
		dto.Flag = d.Txn.Flag
		dto.Payee = d.Txn.Payee
		dto.Narration = d.Txn.Narration
		dto.Tags = d.Txn.Tags
		dto.Links = d.Txn.Links
		dto.Postings = make([]PostingDTO, len(d.Txn.Postings))
		for i, p := range d.Txn.Postings {
			dto.Postings[i] = toPostingDTO(p)
		}
	case journal.KindBalance:
		dto.Account = d.Balance.Account
		dto.Amount = journal.FormatNumber(d.Balance.Amount.Number)
		dto.Currency = d.Balance.Amount.Currency
		if d.Balance.Tolerance != nil {
			dto.Tolerance = journal.FormatNumber(*d.Balance.Tolerance)
		}
	case journal.KindNote:
		dto.Account = d.Note.Account
		dto.Comment = d.Note.Comment
	case journal.KindPad:
		dto.Account = d.Pad.Account
		dto.SourceAccount = d.Pad.SourceAccount
	case journal.KindOpen:
		dto.Account = d.Open.Account
		dto.Currencies = d.Open.Currencies
		dto.Booking = d.Open.Booking
	case journal.KindClose:
		dto.Account = d.Close.Account
	case journal.KindCommodity:
		dto.Symbol = d.Commodity.Symbol
	}
	return dto
}

func toPostingDTO(p journal.Posting) PostingDTO {
	dto := PostingDTO{
		Flag:    p.Flag,
		Account: p.Account,
		Comment: p.Comment,
	}
	if p.Amount != nil {
		dto.Amount = journal.FormatNumber(p.Amount.Number)
		dto.Currency = p.Amount.Currency
	}
	return dto
}

func toEntriesPageDTO(page *ledger.EntriesPage) EntriesPageDTO {
	dtos := make([]EntryDTO, len(page.Entries))
	for i, d := range page.Entries {
		dtos[i] = toEntryDTO(d)
	}
	return EntriesPageDTO{
		Entries:       dtos,
		TotalCount:    page.TotalCount,
		ReturnedCount: page.ReturnedCount,
		Offset:        page.Offset,
		Limit:         page.Limit,
		HasMore:       page.HasMore,
	}
}

func toQueryRowDTO(row beanquery.Row) QueryRowDTO {
	dto := QueryRowDTO{
		Type: string(row.RowKind()),
		Date: journal.FormatDate(row.RowDate()),
	}
	switch r := row.(type) {
	case beanquery.TransactionRow:
		dto.Flag = r.Flag
		dto.Payee = r.Payee
		dto.Narration = r.Narration
		dto.Tags = r.Tags
		dto.Links = r.Links
		dto.Account = r.Account
		if r.Amount != nil {
			dto.Amount = journal.FormatNumber(r.Amount.Number)
			dto.Currency = r.Amount.Currency
		}
	case beanquery.BalanceRow:
		dto.Account = r.Account
		if r.Amount != nil {
			dto.Amount = journal.FormatNumber(r.Amount.Number)
			dto.Currency = r.Amount.Currency
		}
	case beanquery.NoteRow:
		dto.Account = r.Account
		dto.Comment = r.Comment
	case beanquery.PadRow:
		dto.Account = r.Account
		dto.SourceAccount = r.SourceAccount
	}
	return dto
}

func toQueryResultDTO(res *beanquery.QueryResult) QueryResultDTO {
	rows := make([]QueryRowDTO, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = toQueryRowDTO(r)
	}
	return QueryResultDTO{
		Rows:          rows,
		TotalCount:    res.TotalCount,
		ReturnedCount: res.ReturnedCount,
		Offset:        res.Offset,
		Limit:         res.Limit,
		HasMore:       res.HasMore,
	}
}

func toMutationDTOs(ms []ledger.Mutation) []MutationDTO {
	dtos := make([]MutationDTO, len(ms))
	for i, m := range ms {
		dtos[i] = MutationDTO{
			ID:         m.ID,
			EntryID:    m.EntryID,
			Kind:       m.Kind,
			Operation:  m.Op,
			SpanStart:  m.SpanStart,
			SpanEnd:    m.SpanEnd,
			BackupPath: m.BackupPath,
			FileHash:   m.FileHash,
			Message:    m.Message,
			CreatedAt:  m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return dtos
}

// recordsFromRequest converts the flat request body into the per-kind
// plain-data records the façade accepts.

func transactionRecord(req EntryRequest) ledger.TransactionRecord {
	postings := make([]ledger.PostingRecord, len(req.Postings))
	for i, p := range req.Postings {
		postings[i] = ledger.PostingRecord{
			Flag:     p.Flag,
			Account:  p.Account,
			Amount:   p.Amount,
			Currency: p.Currency,
			Comment:  p.Comment,
		}
	}
	return ledger.TransactionRecord{
		Date:      req.Date,
		Flag:      req.Flag,
		Payee:     req.Payee,
		Narration: req.Narration,
		Tags:      req.Tags,
		Links:     req.Links,
		Metadata:  req.Metadata,
		Postings:  postings,
	}
}

func balanceRecord(req EntryRequest) ledger.BalanceRecord {
	return ledger.BalanceRecord{
		Date:      req.Date,
		Account:   req.Account,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Tolerance: req.Tolerance,
		Metadata:  req.Metadata,
	}
}

func noteRecord(req EntryRequest) ledger.NoteRecord {
	return ledger.NoteRecord{
		Date:     req.Date,
		Account:  req.Account,
		Comment:  req.Comment,
		Metadata: req.Metadata,
	}
}

func padRecord(req EntryRequest) ledger.PadRecord {
	return ledger.PadRecord{
		Date:          req.Date,
		Account:       req.Account,
		SourceAccount: req.SourceAccount,
		Metadata:      req.Metadata,
	}
}

func openRecord(req EntryRequest) ledger.OpenRecord {
	return ledger.OpenRecord{
		Date:       req.Date,
		Account:    req.Account,
		Currencies: req.Currencies,
		Booking:    req.Booking,
		Metadata:   req.Metadata,
	}
}

func closeRecord(req EntryRequest) ledger.CloseRecord {
	return ledger.CloseRecord{
		Date:     req.Date,
		Account:  req.Account,
		Metadata: req.Metadata,
	}
}
