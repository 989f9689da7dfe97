package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"leadhunt-engine/internal/domain"
)

// SheetsStore keeps leads in one tab of a Google spreadsheet whose first
// row is Header. Writes rewrite the tab from A1 in one update, so a failed
// write leaves the previous contents in place. Mutations are serialised
// within the process only; concurrent writers elsewhere are last-writer-wins.
type SheetsStore struct {
	svc   *sheets.Service
	id    string
	sheet string
	log   *zap.Logger
	now   func() time.Time

	mu sync.Mutex
}

type sheetRow struct {
	lead  *domain.Lead
	cells []any
}

func NewSheetsStore(ctx context.Context, spreadsheetID, sheet string, log *zap.Logger, opts ...option.ClientOption) (*SheetsStore, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	if sheet == "" {
		sheet = "Leads"
	}
	if log == nil {
		log = zap.NewNop()
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &SheetsStore{
		svc:   svc,
		id:    spreadsheetID,
		sheet: sheet,
		log:   log.Named("store.sheets"),
		now:   time.Now,
	}, nil
}

func (s *SheetsStore) tabRange() string { return s.sheet }

func (s *SheetsStore) List(ctx context.Context) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Lead, 0, len(rows))
	for _, r := range rows {
		if r.lead != nil {
			out = append(out, *r.lead)
		}
	}
	return out, nil
}

func (s *SheetsStore) Get(ctx context.Context, id string) (domain.Lead, error) {
	leads, err := s.List(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	for _, l := range leads {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Lead{}, ErrNotFound
}

func (s *SheetsStore) Exists(ctx context.Context, owner, project string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, _, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.holds(owner, project) {
			return true, nil
		}
	}
	return false, nil
}

func (s *SheetsStore) Insert(ctx context.Context, c domain.Lead) (domain.Lead, bool, error) {
	l, err := prepare(c, s.now())
	if err != nil {
		return domain.Lead{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, prev, err := s.load(ctx)
	if err != nil {
		return domain.Lead{}, false, err
	}
	for _, r := range rows {
		if !r.holds(l.OwnerHandle, l.ProjectName) {
			continue
		}
		if r.lead != nil {
			return *r.lead, false, nil
		}
		s.log.Warn("pair held by malformed row",
			zap.String("owner", l.OwnerHandle), zap.String("project", l.ProjectName))
		return domain.Lead{}, false, heldByMalformed(l.OwnerHandle, l.ProjectName)
	}
	rows = append(rows, sheetRow{lead: &l})
	if err := s.save(ctx, rows, prev); err != nil {
		return domain.Lead{}, false, err
	}
	return l, true, nil
}

func (s *SheetsStore) Update(ctx context.Context, id string, p domain.Patch) (domain.Lead, error) {
	if !validPatch(p) {
		return domain.Lead{}, ErrInvalidLead
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, prev, err := s.load(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	for i, r := range rows {
		if r.lead == nil || r.lead.ID != id {
			continue
		}
		updated := p.Apply(*r.lead)
		rows[i] = sheetRow{lead: &updated}
		if err := s.save(ctx, rows, prev); err != nil {
			return domain.Lead{}, err
		}
		return updated, nil
	}
	return domain.Lead{}, ErrNotFound
}

// load also returns how many rows the tab currently spans, blank ones
// included, so save knows what trailing range it leaves behind.
func (s *SheetsStore) load(ctx context.Context) ([]sheetRow, int, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.id, s.tabRange()).Context(ctx).Do()
	if err != nil {
		return nil, 0, fmt.Errorf("read sheet %s: %w", s.sheet, err)
	}

	var rows []sheetRow
	for i, raw := range resp.Values {
		cells := make([]string, len(raw))
		for j, c := range raw {
			cells[j] = fmt.Sprint(c)
		}
		if i == 0 && len(cells) > 0 && cells[0] == Header[0] {
			continue
		}
		if blank(cells) {
			continue
		}
		// the API drops trailing empty cells
		for len(cells) < len(Header) {
			cells = append(cells, "")
		}
		l, err := DecodeFields(cells)
		if err != nil {
			s.log.Warn("skipping malformed row", zap.Int("row", i+1), zap.Error(err))
			rows = append(rows, sheetRow{cells: raw})
			continue
		}
		rows = append(rows, sheetRow{lead: &l})
	}
	return rows, len(resp.Values), nil
}

func (s *SheetsStore) save(ctx context.Context, rows []sheetRow, prev int) error {
	values := make([][]any, 0, len(rows)+1)
	values = append(values, toAny(Header))
	for _, r := range rows {
		if r.lead != nil {
			values = append(values, toAny(EncodeFields(*r.lead)))
			continue
		}
		values = append(values, r.cells)
	}

	_, err := s.svc.Spreadsheets.Values.Update(s.id, s.tabRange(), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write sheet %s: %w", s.sheet, err)
	}
	if prev <= len(values) {
		return nil
	}
	// Blank rows were compacted away; clear what is left below the table.
	tail := s.rowsRange(len(values)+1, prev)
	if _, err := s.svc.Spreadsheets.Values.Clear(s.id, tail, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", tail, err)
	}
	return nil
}

func (s *SheetsStore) rowsRange(from, to int) string {
	return fmt.Sprintf("'%s'!%d:%d", strings.ReplaceAll(s.sheet, "'", "''"), from, to)
}

// holds matches a decoded lead, or the owner and project cells of a kept
// malformed row.
func (r sheetRow) holds(owner, project string) bool {
	if r.lead != nil {
		return r.lead.OwnerHandle == owner && r.lead.ProjectName == project
	}
	return len(r.cells) >= 3 &&
		strings.TrimSpace(fmt.Sprint(r.cells[1])) == owner &&
		strings.TrimSpace(fmt.Sprint(r.cells[2])) == project
}

func toAny(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
