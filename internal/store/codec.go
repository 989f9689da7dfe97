package store

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"leadhunt-engine/internal/domain"
)

// Header is the fixed column order of the persisted lead table.
var Header = []string{
	"id",
	"owner_handle",
	"project_name",
	"project_url",
	"project_description",
	"email",
	"last_activity",
	"created_at",
	"status",
	"email_sent",
	"email_sent_at",
	"email_approved",
	"email_pending_approval",
	"ai_score",
	"ai_recommendation",
	"ai_analysis",
}

const timeLayout = time.RFC3339Nano

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// EncodeFields renders a lead as cells in Header order.
func EncodeFields(l domain.Lead) []string {
	return []string{
		l.ID,
		l.OwnerHandle,
		l.ProjectName,
		l.ProjectURL,
		l.ProjectDescription,
		l.Email,
		formatTime(l.LastActivity),
		formatTime(l.CreatedAt),
		string(l.Status),
		strconv.FormatBool(l.EmailSent),
		formatTimePtr(l.EmailSentAt),
		strconv.FormatBool(l.EmailApproved),
		strconv.FormatBool(l.EmailPendingApproval),
		formatFloatPtr(l.AIScore),
		string(l.AIRecommendation),
		l.AIAnalysis,
	}
}

// Encode renders one CSV line: every cell quoted, inner quotes doubled.
// CR/LF inside a cell become a space so a record never spans lines.
func Encode(l domain.Lead) string {
	return encodeCells(EncodeFields(l))
}

func encodeCells(cells []string) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(newlines.Replace(c), `"`, `""`))
		b.WriteByte('"')
	}
	return b.String()
}

func EncodeHeader() string {
	return encodeCells(Header)
}

// Decode parses one CSV line produced by Encode (or edited by hand).
func Decode(line string) (domain.Lead, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	cells, err := r.Read()
	if err != nil {
		return domain.Lead{}, &MalformedRecordError{Reason: err.Error()}
	}
	return DecodeFields(cells)
}

// DecodeFields rebuilds a lead from cells in Header order.
func DecodeFields(cells []string) (domain.Lead, error) {
	if len(cells) != len(Header) {
		return domain.Lead{}, &MalformedRecordError{
			Reason: fmt.Sprintf("expected %d columns, got %d", len(Header), len(cells)),
		}
	}

	var (
		l   domain.Lead
		err error
	)
	bad := func(col int, reason string) error {
		return &MalformedRecordError{Column: Header[col], Reason: reason}
	}

	l.ID = cells[0]
	l.OwnerHandle = cells[1]
	l.ProjectName = cells[2]
	l.ProjectURL = cells[3]
	l.ProjectDescription = cells[4]
	l.Email = cells[5]

	if l.LastActivity, err = parseTime(cells[6]); err != nil {
		return domain.Lead{}, bad(6, err.Error())
	}
	if l.CreatedAt, err = parseTime(cells[7]); err != nil {
		return domain.Lead{}, bad(7, err.Error())
	}
	if l.Status, err = domain.ParseStatus(cells[8]); err != nil {
		return domain.Lead{}, bad(8, err.Error())
	}
	if l.EmailSent, err = parseBool(cells[9]); err != nil {
		return domain.Lead{}, bad(9, err.Error())
	}
	if cells[10] != "" {
		t, err := parseTime(cells[10])
		if err != nil {
			return domain.Lead{}, bad(10, err.Error())
		}
		l.EmailSentAt = &t
	}
	if l.EmailApproved, err = parseBool(cells[11]); err != nil {
		return domain.Lead{}, bad(11, err.Error())
	}
	if l.EmailPendingApproval, err = parseBool(cells[12]); err != nil {
		return domain.Lead{}, bad(12, err.Error())
	}
	if cells[13] != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(cells[13]), 64)
		if err != nil {
			return domain.Lead{}, bad(13, "not a number")
		}
		l.AIScore = &f
	}
	if l.AIRecommendation, err = domain.ParseRecommendation(cells[14]); err != nil {
		return domain.Lead{}, bad(14, err.Error())
	}
	l.AIAnalysis = cells[15]
	return l, nil
}

type row struct {
	lead *domain.Lead
	raw  string // verbatim line when the row could not be decoded
}

// readRows parses a whole table. Malformed rows are kept verbatim and
// reported, never fatal. A leading header row is skipped.
func readRows(r io.Reader) (rows []row, malformed []*MalformedRecordError, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if lineNo == 1 && isHeader(line) {
			continue
		}
		l, derr := Decode(line)
		if derr != nil {
			me, ok := derr.(*MalformedRecordError)
			if !ok {
				me = &MalformedRecordError{Reason: derr.Error()}
			}
			me.Line = lineNo
			malformed = append(malformed, me)
			rows = append(rows, row{raw: line})
			continue
		}
		rows = append(rows, row{lead: &l})
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return rows, malformed, nil
}

// ReadLeads decodes every well-formed row of a lead table.
func ReadLeads(r io.Reader) ([]domain.Lead, []*MalformedRecordError, error) {
	rows, malformed, err := readRows(r)
	if err != nil {
		return nil, nil, err
	}
	return leadsOf(rows), malformed, nil
}

func writeRows(w io.Writer, rows []row) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(EncodeHeader() + "\n"); err != nil {
		return err
	}
	for _, r := range rows {
		line := r.raw
		if r.lead != nil {
			line = Encode(*r.lead)
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteLeads writes Header plus one line per lead.
func WriteLeads(w io.Writer, leads []domain.Lead) error {
	rows := make([]row, len(leads))
	for i := range leads {
		rows[i] = row{lead: &leads[i]}
	}
	return writeRows(w, rows)
}

func leadsOf(rows []row) []domain.Lead {
	out := make([]domain.Lead, 0, len(rows))
	for _, r := range rows {
		if r.lead != nil {
			out = append(out, *r.lead)
		}
	}
	return out
}

// rawPair reads the owner and project cells of an undecodable line.
func rawPair(line string) (owner, project string, ok bool) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	cells, err := r.Read()
	if err != nil || len(cells) < 3 {
		return "", "", false
	}
	owner, project = strings.TrimSpace(cells[1]), strings.TrimSpace(cells[2])
	return owner, project, owner != "" && project != ""
}

func isHeader(line string) bool {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	cells, err := r.Read()
	if err != nil || len(cells) == 0 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(cells[0]), Header[0]) &&
		(len(cells) < 2 || strings.EqualFold(strings.TrimSpace(cells[1]), Header[1]))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q", s)
	}
	return t.UTC(), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false", "":
		return false, nil
	}
	return false, fmt.Errorf("bad boolean %q", s)
}
