package journals

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/outbox"
)

type memoryRepo struct {
	nextID    int64
	entries   map[int64]JournalEntry
	sequences map[string]int64
	// raceTrace simulates a concurrent winner: the first insert with this trace sees a conflict.
	raceTrace string
	// linked holds journal ids referenced by subledger items.
	linked map[int64]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[int64]JournalEntry), sequences: make(map[string]int64)}
}

func (m *memoryRepo) Get(_ context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error) {
	e, ok := m.entries[id]
	if !ok || e.TenantID != tenantID {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return e, nil
}

func (m *memoryRepo) List(_ context.Context, tenantID uuid.UUID, _ ListFilter) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, e := range m.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) WithTx(ctx context.Context, _ uuid.UUID, fn func(context.Context, TxRepository) error) error {
	entries := maps.Clone(m.entries)
	sequences := maps.Clone(m.sequences)
	nextID := m.nextID
	if err := fn(ctx, m); err != nil {
		m.entries, m.sequences, m.nextID = entries, sequences, nextID
		return err
	}
	return nil
}

func (m *memoryRepo) FindByTrace(_ context.Context, tenantID uuid.UUID, traceID string) (JournalEntry, error) {
	for _, e := range m.entries {
		if e.TenantID == tenantID && e.TraceID == traceID {
			return e, nil
		}
	}
	return JournalEntry{}, shared.ErrJournalNotFound
}

func (m *memoryRepo) NextNumber(_ context.Context, tenantID uuid.UUID, prefix, periodKey string) (int64, error) {
	key := tenantID.String() + "/" + prefix + "/" + periodKey
	m.sequences[key]++
	return m.sequences[key], nil
}

func (m *memoryRepo) InsertJournalEntry(_ context.Context, entry JournalEntry) (JournalEntry, error) {
	if m.raceTrace != "" && entry.TraceID == m.raceTrace {
		m.raceTrace = ""
		winner := entry
		m.nextID++
		winner.ID = m.nextID
		winner.Number = "WINNER"
		m.entries[winner.ID] = winner
		return JournalEntry{}, shared.ErrDuplicateTrace
	}
	for _, e := range m.entries {
		if e.TenantID == entry.TenantID && e.TraceID == entry.TraceID {
			return JournalEntry{}, shared.ErrDuplicateTrace
		}
	}
	m.nextID++
	entry.ID = m.nextID
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *memoryRepo) InsertJournalLines(_ context.Context, entry JournalEntry, lines []JournalLine) error {
	stored := m.entries[entry.ID]
	stored.Lines = append([]JournalLine(nil), lines...)
	m.entries[entry.ID] = stored
	return nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (JournalEntry, error) {
	return m.Get(ctx, tenantID, id)
}

func (m *memoryRepo) MarkVoid(_ context.Context, _ uuid.UUID, id int64, reason string, at time.Time) error {
	e := m.entries[id]
	if e.Status != JournalStatusPosted {
		return shared.ErrInvalidStatus
	}
	e.Status = JournalStatusVoid
	e.VoidReason = reason
	e.VoidedAt = &at
	m.entries[id] = e
	return nil
}

func (m *memoryRepo) MarkReversed(_ context.Context, _ uuid.UUID, id, reversalID int64, reason string, at time.Time) error {
	e := m.entries[id]
	if e.ReversedByID != nil {
		return shared.ErrAlreadyReversed
	}
	e.ReversedByID = &reversalID
	e.ReversalReason = reason
	e.ReversedAt = &at
	m.entries[id] = e
	return nil
}

func (m *memoryRepo) SubledgerLinked(_ context.Context, _ uuid.UUID, journalID int64) (bool, error) {
	return m.linked[journalID], nil
}

type chartResolver struct{}

func (chartResolver) Resolve(_ context.Context, tenantID uuid.UUID, codes []string) (map[string]accounts.Account, error) {
	chart := make(map[string]accounts.Account)
	for i, a := range accounts.DefaultChart() {
		a.ID = int64(i + 1)
		a.TenantID = tenantID
		chart[a.Code] = a
	}
	out := make(map[string]accounts.Account, len(codes))
	for _, code := range codes {
		a, ok := chart[code]
		if !ok {
			return nil, shared.Invalid("account_code", "unknown account %s", code)
		}
		out[code] = a
	}
	return out, nil
}

func (r chartResolver) ResolveAny(ctx context.Context, tenantID uuid.UUID, codes []string) (map[string]accounts.Account, error) {
	return r.Resolve(ctx, tenantID, codes)
}

// stubGate rejects dates inside closed, admitting system postings there, and everything inside locked.
type stubGate struct {
	closed   map[string]bool
	locked   map[string]bool
	periodID int64
}

func (g *stubGate) Admit(_ context.Context, _ uuid.UUID, date time.Time, system bool) (*int64, error) {
	key := date.Format("2006-01")
	if g.locked[key] {
		return nil, &shared.PeriodViolation{PeriodName: key, Status: "LOCKED", Message: "no postings allowed"}
	}
	if g.closed[key] && !system {
		return nil, &shared.PeriodViolation{PeriodName: key, Status: "CLOSED", Message: "only system postings allowed"}
	}
	if g.periodID == 0 {
		return nil, nil
	}
	id := g.periodID
	return &id, nil
}

type recordingSink struct {
	events []outbox.Event
}

func (s *recordingSink) Append(_ context.Context, _ uuid.UUID, evt outbox.Event) error {
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) types() []outbox.EventType {
	out := make([]outbox.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type())
	}
	return out
}

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func line(code, debit, credit string) LineRequest {
	l := LineRequest{AccountCode: code}
	if debit != "" {
		l.Debit = amount(debit)
	}
	if credit != "" {
		l.Credit = amount(credit)
	}
	return l
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(fmt.Sprintf("bad date %s", s))
	}
	return t
}
