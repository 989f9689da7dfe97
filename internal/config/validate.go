package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"text/template"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

func (v Validation) Error() string {
	return "config validation failed:\n- " + strings.Join(v.Errors, "\n- ")
}

var backends = map[string]bool{"csv": true, "sqlite": true, "postgres": true, "sheets": true}

// NormalizeAndValidate returns a normalized copy plus every problem found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.GitHub.Queries = trimList(out.GitHub.Queries)
	out.Discovery.TopicsAny = trimList(out.Discovery.TopicsAny)
	out.Discovery.KeywordsAny = trimList(out.Discovery.KeywordsAny)
	out.Store.Backend = strings.ToLower(strings.TrimSpace(out.Store.Backend))
	out.GitHub.BaseURL = strings.TrimRight(strings.TrimSpace(out.GitHub.BaseURL), "/")

	// ---- app ----
	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}
	if strings.TrimSpace(out.App.DataDir) == "" {
		res.addErr("app.data_dir is required")
	}

	// ---- store ----
	if !backends[out.Store.Backend] {
		res.addErr("store.backend must be one of csv, sqlite, postgres, sheets (got %q)", out.Store.Backend)
	}
	switch out.Store.Backend {
	case "csv":
		if out.Store.CSVPath == "" {
			res.addErr("store.csv_path is required for the csv backend")
		}
	case "sqlite":
		if out.Store.SQLitePath == "" {
			res.addErr("store.sqlite_path is required for the sqlite backend")
		}
	case "postgres":
		if out.Store.PostgresURL == "" {
			res.addErr("store.postgres_url (or LEADHUNT_POSTGRES_URL) is required for the postgres backend")
		}
	case "sheets":
		if out.Store.Sheets.SpreadsheetID == "" {
			res.addErr("store.sheets.spreadsheet_id is required for the sheets backend")
		}
		res.addWarn("the sheets backend is last-writer-wins across processes; run one writer at a time.")
	}
	if out.Store.BackupKeep < 0 {
		res.addErr("store.backup_keep must be >= 0")
	}
	if out.Store.BackupDir == "" {
		res.addWarn("store.backup_dir is empty; write snapshots are disabled.")
	}

	// ---- github ----
	if u, err := url.Parse(out.GitHub.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		res.addErr("github.base_url must be an absolute URL")
	}
	if len(out.GitHub.Queries) == 0 {
		res.addWarn("github.queries is empty; discovery will find nothing.")
	}
	if out.GitHub.PerPage <= 0 || out.GitHub.PerPage > 100 {
		res.addErr("github.per_page must be 1..100")
	}
	if out.GitHub.MaxPages <= 0 {
		res.addErr("github.max_pages must be > 0")
	}
	if out.GitHub.RequestsPerSecond <= 0 {
		res.addErr("github.requests_per_second must be > 0")
	} else if out.GitHub.RequestsPerSecond > 10 {
		res.addWarn("github.requests_per_second is high (%.1f) and may hit secondary rate limits.", out.GitHub.RequestsPerSecond)
	}
	if out.GitHub.Concurrency <= 0 {
		out.GitHub.Concurrency = 1
	}

	// ---- discovery ----
	if out.Discovery.MinFollowers < 0 {
		res.addErr("discovery.min_followers must be >= 0")
	}
	if out.Discovery.MaxInactiveDays < 0 {
		res.addErr("discovery.max_inactive_days must be >= 0")
	}

	// ---- scoring ----
	if out.Scoring.Enabled && strings.TrimSpace(out.Scoring.Model) == "" {
		res.addErr("scoring.model is required when scoring.enabled=true")
	}
	if out.Scoring.BatchLimit < 0 {
		res.addErr("scoring.batch_limit must be >= 0")
	}

	// ---- outreach ----
	if out.Outreach.From != "" {
		if _, err := mail.ParseAddress(out.Outreach.From); err != nil {
			res.addErr("outreach.from is not a valid address: %v", err)
		}
	}
	if _, err := template.New("subject").Parse(out.Outreach.Subject); err != nil {
		res.addErr("outreach.subject: %v", err)
	}
	if _, err := template.New("body").Parse(out.Outreach.Body); err != nil {
		res.addErr("outreach.body: %v", err)
	}
	if out.Outreach.DailyLimit <= 0 {
		res.addErr("outreach.daily_limit must be > 0")
	}
	if out.Outreach.DelayMS < 0 {
		res.addErr("outreach.delay_ms must be >= 0")
	}
	if out.Outreach.From != "" && strings.TrimSpace(out.SMTP.Host) == "" {
		res.addWarn("outreach.from is set but smtp.host is empty; only dry runs will work.")
	}

	// ---- imap (password not required here; it's in keychain) ----
	if out.IMAP.Enabled {
		if strings.TrimSpace(out.IMAP.Host) == "" {
			res.addErr("imap.host is required when imap.enabled=true")
		}
		if out.IMAP.Port == 0 {
			res.addErr("imap.port is required when imap.enabled=true")
		}
		if strings.TrimSpace(out.IMAP.Username) == "" {
			res.addErr("imap.username is required when imap.enabled=true")
		}
		if strings.TrimSpace(out.IMAP.Mailbox) == "" {
			res.addErr("imap.mailbox is required when imap.enabled=true")
		}
	}

	// ---- polling ----
	if out.Polling.ReplySeconds < 0 || out.Polling.DiscoveryMinutes < 0 {
		res.addErr("polling intervals must be >= 0")
	} else if out.IMAP.Enabled && out.Polling.ReplySeconds > 0 && out.Polling.ReplySeconds < 30 {
		res.addWarn("polling.reply_seconds is very low (%d) and may cause rate limits.", out.Polling.ReplySeconds)
	}

	return out, res
}
