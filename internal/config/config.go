package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port      int    `yaml:"port" json:"port"`
	DataDir   string `yaml:"data_dir" json:"data_dir"`
	LogFormat string `yaml:"log_format" json:"log_format"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" json:"spreadsheet_id"`
	Sheet           string `yaml:"sheet" json:"sheet"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
}

type StoreConfig struct {
	Backend     string       `yaml:"backend" json:"backend"`
	CSVPath     string       `yaml:"csv_path" json:"csv_path"`
	BackupDir   string       `yaml:"backup_dir" json:"backup_dir"`
	BackupKeep  int          `yaml:"backup_keep" json:"backup_keep"`
	SQLitePath  string       `yaml:"sqlite_path" json:"sqlite_path"`
	PostgresURL string       `yaml:"postgres_url" json:"postgres_url"`
	Sheets      SheetsConfig `yaml:"sheets" json:"sheets"`
}

type GitHubConfig struct {
	BaseURL           string   `yaml:"base_url" json:"base_url"`
	Queries           []string `yaml:"queries" json:"queries"`
	PerPage           int      `yaml:"per_page" json:"per_page"`
	MaxPages          int      `yaml:"max_pages" json:"max_pages"`
	RequestDelayMS    int      `yaml:"request_delay_ms" json:"request_delay_ms"`
	RequestsPerSecond float64  `yaml:"requests_per_second" json:"requests_per_second"`
	Concurrency       int      `yaml:"concurrency" json:"concurrency"`
}

type DiscoveryConfig struct {
	MinFollowers      int      `yaml:"min_followers" json:"min_followers"`
	RequireBio        bool     `yaml:"require_bio" json:"require_bio"`
	TopicsAny         []string `yaml:"topics_any" json:"topics_any"`
	KeywordsAny       []string `yaml:"keywords_any" json:"keywords_any"`
	MaxInactiveDays   int      `yaml:"max_inactive_days" json:"max_inactive_days"`
	SkipOrganizations bool     `yaml:"skip_organizations" json:"skip_organizations"`
}

type ScoringConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Model          string `yaml:"model" json:"model"`
	RequestDelayMS int    `yaml:"request_delay_ms" json:"request_delay_ms"`
	MarkPending    bool   `yaml:"mark_pending" json:"mark_pending"`
	BatchLimit     int    `yaml:"batch_limit" json:"batch_limit"`
}

type OutreachConfig struct {
	From       string `yaml:"from" json:"from"`
	FromName   string `yaml:"from_name" json:"from_name"`
	Subject    string `yaml:"subject" json:"subject"`
	Body       string `yaml:"body" json:"body"`
	DailyLimit int    `yaml:"daily_limit" json:"daily_limit"`
	DelayMS    int    `yaml:"delay_ms" json:"delay_ms"`
}

type SMTPConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
}

type IMAPConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	Username     string `yaml:"username" json:"username"`
	Mailbox      string `yaml:"mailbox" json:"mailbox"`
	LookbackDays int    `yaml:"lookback_days" json:"lookback_days"`
}

type PollingConfig struct {
	ReplySeconds     int `yaml:"reply_seconds" json:"reply_seconds"`
	DiscoveryMinutes int `yaml:"discovery_minutes" json:"discovery_minutes"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url" json:"amqp_url"`
	Exchange string `yaml:"exchange" json:"exchange"`
}

type ExportsConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

type Config struct {
	App       AppConfig       `yaml:"app" json:"app"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	GitHub    GitHubConfig    `yaml:"github" json:"github"`
	Discovery DiscoveryConfig `yaml:"discovery" json:"discovery"`
	Scoring   ScoringConfig   `yaml:"scoring" json:"scoring"`
	Outreach  OutreachConfig  `yaml:"outreach" json:"outreach"`
	SMTP      SMTPConfig      `yaml:"smtp" json:"smtp"`
	IMAP      IMAPConfig      `yaml:"imap" json:"imap"`
	Polling   PollingConfig   `yaml:"polling" json:"polling"`
	Events    EventsConfig    `yaml:"events" json:"events"`
	Exports   ExportsConfig   `yaml:"exports" json:"exports"`
}

func Default() Config {
	var cfg Config
	cfg.App.Port = 38471
	cfg.App.DataDir = "."
	cfg.App.LogFormat = "dev"
	cfg.App.LogLevel = "info"

	cfg.Store.Backend = "csv"
	cfg.Store.CSVPath = "leads.csv"
	cfg.Store.BackupDir = "backups"
	cfg.Store.SQLitePath = "leads.db"
	cfg.Store.Sheets.Sheet = "Leads"

	cfg.GitHub.BaseURL = "https://api.github.com"
	cfg.GitHub.Queries = []string{"n8n", "n8n workflow", "n8n-nodes", "topic:n8n-community-node-package"}
	cfg.GitHub.PerPage = 30
	cfg.GitHub.MaxPages = 2
	cfg.GitHub.RequestDelayMS = 1000
	cfg.GitHub.RequestsPerSecond = 1
	cfg.GitHub.Concurrency = 2

	cfg.Discovery.MaxInactiveDays = 180
	cfg.Discovery.SkipOrganizations = true
	cfg.Discovery.KeywordsAny = []string{"n8n", "workflow", "automation"}

	cfg.Scoring.Enabled = true
	cfg.Scoring.Model = "gemini-1.5-flash"
	cfg.Scoring.RequestDelayMS = 1500
	cfg.Scoring.MarkPending = true
	cfg.Scoring.BatchLimit = 50

	cfg.Outreach.Subject = "Your {{.ProjectName}} project"
	cfg.Outreach.Body = "Hi {{.OwnerHandle}},\n\nI came across {{.ProjectName}} ({{.ProjectURL}}) and wanted to reach out.\n"
	cfg.Outreach.DailyLimit = 20
	cfg.Outreach.DelayMS = 5000

	cfg.SMTP.Port = 587

	cfg.IMAP.Port = 993
	cfg.IMAP.Mailbox = "INBOX"
	cfg.IMAP.LookbackDays = 30

	cfg.Polling.ReplySeconds = 300
	cfg.Polling.DiscoveryMinutes = 0

	cfg.Events.Exchange = "leadhunt.events"
	cfg.Exports.Dir = "exports"
	return cfg
}

// Load reads path over Default and applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// Resolve anchors a relative path at the data dir.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.DataDir, p)
}
