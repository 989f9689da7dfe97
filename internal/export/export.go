package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"leadhunt-engine/internal/domain"
)

const dateLayout = "2006-01-02"

var fullHeader = []string{
	"ID", "Owner", "Project", "Project URL", "Description", "Email",
	"Last Activity", "Created At", "Status", "Email Sent", "Email Sent At",
	"Email Approved", "Pending Approval", "AI Score", "AI Recommendation",
	"AI Analysis", "Has Email", "Days Since Activity",
}

var campaignHeader = []string{
	"ID", "Owner", "Project", "Email", "Project URL", "Description",
	"AI Score", "AI Recommendation",
}

// Full dumps every lead with readable headers and derived columns to
// <dir>/leads_full_YYYY-MM-DD.csv.
func Full(leads []domain.Lead, dir string, now time.Time) (string, error) {
	rows := make([][]string, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, []string{
			l.ID, l.OwnerHandle, l.ProjectName, l.ProjectURL, l.ProjectDescription, l.Email,
			stamp(l.LastActivity), stamp(l.CreatedAt), string(l.Status),
			strconv.FormatBool(l.EmailSent), stampPtr(l.EmailSentAt),
			strconv.FormatBool(l.EmailApproved), strconv.FormatBool(l.EmailPendingApproval),
			score(l.AIScore), string(l.AIRecommendation), l.AIAnalysis,
			yesNo(l.HasEmail()), daysSince(l.LastActivity, now),
		})
	}
	return writeCSV(dir, "leads_full_"+now.UTC().Format(dateLayout)+".csv", fullHeader, rows)
}

// Campaign dumps only leads ready for outreach.
func Campaign(leads []domain.Lead, dir string, now time.Time) (string, error) {
	ready := domain.Select(leads, domain.ReadyForOutreach)
	rows := make([][]string, 0, len(ready))
	for _, l := range ready {
		rows = append(rows, []string{
			l.ID, l.OwnerHandle, l.ProjectName, l.Email, l.ProjectURL, l.ProjectDescription,
			score(l.AIScore), string(l.AIRecommendation),
		})
	}
	return writeCSV(dir, "email_campaign_"+now.UTC().Format(dateLayout)+".csv", campaignHeader, rows)
}

// Analytics computes the summary and writes it as indented JSON.
func Analytics(leads []domain.Lead, dir string, now time.Time) (Summary, string, error) {
	sum := Analyze(leads, now)
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return sum, "", err
	}
	path, err := writeFile(dir, "analytics_"+now.UTC().Format(dateLayout)+".json", append(b, '\n'))
	return sum, path, err
}

func writeCSV(dir, name string, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", name, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("export %s: %w", name, err)
	}
	return path, f.Close()
}

func writeFile(dir, name string, b []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("export %s: %w", name, err)
	}
	return path, nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func stampPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return stamp(*t)
}

func score(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func daysSince(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := int(now.Sub(t).Hours() / 24)
	if d < 0 {
		d = 0
	}
	return strconv.Itoa(d)
}
