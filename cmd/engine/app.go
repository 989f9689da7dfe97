package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"leadhunt-engine/internal/backup"
	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/discover"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/httpapi"
	"leadhunt-engine/internal/logging"
	"leadhunt-engine/internal/metrics"
	"leadhunt-engine/internal/outreach"
	"leadhunt-engine/internal/replies"
	"leadhunt-engine/internal/scoring"
	"leadhunt-engine/internal/secrets"
	"leadhunt-engine/internal/store"
	"leadhunt-engine/internal/workflow"
)

// app holds everything one engine process shares across commands.
type app struct {
	cfgVal      *atomic.Value // stores config.Config
	userCfgPath string
	log         *zap.Logger

	store    store.LeadStore
	workflow *workflow.Service
	hub      *events.Hub
	bus      *events.Bus
	amqp     *events.AMQPSink

	closers []func() error
}

func dataDir() string {
	if flagDataDir != "" {
		return flagDataDir
	}
	if v := os.Getenv("LEADHUNT_DATA_DIR"); v != "" {
		return v
	}
	return "."
}

func bootstrap(ctx context.Context) (*app, error) {
	dir := dataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	config.LoadDotEnv(filepath.Join(dir, ".env"))

	userCfgPath := flagConfig
	if userCfgPath == "" {
		p, err := config.EnsureUserConfig(dir, filepath.Join("config", "config.yml"))
		if err != nil {
			return nil, fmt.Errorf("config bootstrap failed: %w", err)
		}
		userCfgPath = p
	}

	a := &app{cfgVal: &atomic.Value{}, userCfgPath: userCfgPath}
	cfg, err := a.loadCfg()
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", userCfgPath, err)
	}
	a.cfgVal.Store(cfg)

	log, err := logging.New(cfg.App.LogFormat, cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a.log = log
	a.closers = append(a.closers, func() error { _ = log.Sync(); return nil })

	inner, closer, err := store.Open(ctx, store.Options{
		Backend:         cfg.Store.Backend,
		CSVPath:         cfg.Resolve(cfg.Store.CSVPath),
		SQLitePath:      cfg.Resolve(cfg.Store.SQLitePath),
		PostgresURL:     cfg.Store.PostgresURL,
		SpreadsheetID:   cfg.Store.Sheets.SpreadsheetID,
		Sheet:           cfg.Store.Sheets.Sheet,
		CredentialsFile: cfg.Resolve(cfg.Store.Sheets.CredentialsFile),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	a.closers = append(a.closers, closer.Close)

	var sink store.BackupSink
	if cfg.Store.BackupDir != "" {
		sink = &prunedDir{Dir: backup.NewDir(cfg.Resolve(cfg.Store.BackupDir)), keep: cfg.Store.BackupKeep, log: log}
	}
	a.store = store.WithBackup(inner, sink, log)
	a.workflow = workflow.New(a.store)

	a.hub = events.NewHub()
	a.bus = &events.Bus{Hub: a.hub, Log: log}
	if cfg.Events.AMQPURL != "" {
		s, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			// The broker is optional; the SSE hub keeps working without it.
			log.Warn("amqp unavailable", zap.Error(err))
		} else {
			a.amqp = s
			a.bus.Sinks = append(a.bus.Sinks, s)
			a.closers = append(a.closers, s.Close)
		}
	}

	log.Info("engine ready",
		zap.String("data_dir", cfg.App.DataDir),
		zap.String("config", userCfgPath),
		zap.String("backend", cfg.Store.Backend),
	)
	return a, nil
}

func (a *app) loadCfg() (config.Config, error) {
	cfg, err := config.Load(a.userCfgPath)
	if err != nil {
		return cfg, err
	}
	if flagDataDir != "" {
		cfg.App.DataDir = flagDataDir
	}
	cfg, vr := config.NormalizeAndValidate(cfg)
	if !vr.OK() {
		return cfg, vr
	}
	return cfg, nil
}

func (a *app) cfg() config.Config {
	return a.cfgVal.Load().(config.Config)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

func (a *app) discovery(cfg config.Config) *discover.Runner {
	lim := discover.NewHostLimiter(discover.EffectiveRate(cfg.GitHub.RequestsPerSecond, cfg.GitHub.RequestDelayMS), 1)
	gh := discover.NewGitHub(cfg.GitHub.BaseURL, config.GitHubToken(), cfg.GitHub.PerPage, lim)
	return &discover.Runner{
		Store:           a.store,
		Search:          gh,
		Source:          gh,
		Qualifier:       discover.RuleQualifier{Rules: cfg.Discovery},
		Log:             a.log,
		Queries:         cfg.GitHub.Queries,
		MaxPages:        cfg.GitHub.MaxPages,
		Concurrency:     cfg.GitHub.Concurrency,
		MaxInactiveDays: cfg.Discovery.MaxInactiveDays,
		OnAdded: func(l domain.Lead) {
			a.bus.Emit(context.Background(), "", events.LeadCreated, l)
		},
	}
}

type geminiRunner struct {
	*scoring.Runner
	gem *scoring.Gemini
}

// Run scores then releases the model client.
func (g geminiRunner) Run(ctx context.Context, limit int) (scoring.Summary, error) {
	defer func() { _ = g.gem.Close() }()
	return g.Runner.Run(ctx, limit)
}

func (a *app) scoring(ctx context.Context, cfg config.Config) (geminiRunner, error) {
	if !cfg.Scoring.Enabled {
		return geminiRunner{}, fmt.Errorf("scoring: %w", httpapi.ErrDisabled)
	}
	gem, err := scoring.NewGemini(ctx, config.GeminiAPIKey(), cfg.Scoring.Model)
	if err != nil {
		return geminiRunner{}, domain.Collab("gemini", "client", err)
	}
	return geminiRunner{
		gem: gem,
		Runner: &scoring.Runner{
			Store:       a.store,
			Workflow:    a.workflow,
			Scorer:      &scoring.LLMScorer{Gen: gem},
			Log:         a.log,
			Delay:       time.Duration(cfg.Scoring.RequestDelayMS) * time.Millisecond,
			MarkPending: cfg.Scoring.MarkPending,
			OnScored: func(l domain.Lead) {
				a.bus.Emit(context.Background(), "", events.LeadUpdated, l)
			},
		},
	}, nil
}

// keychainSender looks the SMTP password up at send time so dry runs
// work without one.
type keychainSender struct {
	cfg config.Config
}

func (k keychainSender) Send(ctx context.Context, m outreach.Message) error {
	pw, err := secrets.Get(secrets.SMTP, secrets.SMTPAccount(k.cfg))
	if err != nil {
		return domain.Collab("smtp", "auth", err)
	}
	s := &outreach.SMTPSender{
		Host:     k.cfg.SMTP.Host,
		Port:     k.cfg.SMTP.Port,
		Username: k.cfg.SMTP.Username,
		Password: pw,
		From:     k.cfg.Outreach.From,
		FromName: k.cfg.Outreach.FromName,
	}
	return s.Send(ctx, m)
}

func (a *app) outreach(cfg config.Config) (*outreach.Campaign, error) {
	tpl, err := outreach.ParseTemplates(cfg.Outreach.Subject, cfg.Outreach.Body)
	if err != nil {
		return nil, err
	}
	return &outreach.Campaign{
		Store:      a.store,
		Workflow:   a.workflow,
		Sender:     keychainSender{cfg: cfg},
		Templates:  tpl,
		DailyLimit: cfg.Outreach.DailyLimit,
		Delay:      time.Duration(cfg.Outreach.DelayMS) * time.Millisecond,
		Log:        a.log,
		OnSent: func(l domain.Lead) {
			metrics.EmailSent()
			a.bus.Emit(context.Background(), "", events.LeadUpdated, l)
		},
	}, nil
}

func (a *app) replies(cfg config.Config) (*replies.Poller, error) {
	if !cfg.IMAP.Enabled {
		return nil, fmt.Errorf("reply polling: %w", httpapi.ErrDisabled)
	}
	log := a.log
	return &replies.Poller{
		Store:    a.store,
		Workflow: a.workflow,
		Lookback: time.Duration(cfg.IMAP.LookbackDays) * 24 * time.Hour,
		Log:      log,
		Open: func(ctx context.Context) (replies.Mailbox, error) {
			pw, err := secrets.Get(secrets.IMAP, secrets.IMAPAccount(cfg))
			if err != nil {
				return nil, err
			}
			mb, err := replies.DialIMAP(ctx, replies.IMAPOptions{
				Host:     cfg.IMAP.Host,
				Port:     cfg.IMAP.Port,
				Username: cfg.IMAP.Username,
				Password: pw,
				Mailbox:  cfg.IMAP.Mailbox,
			}, log)
			if err != nil {
				return nil, err
			}
			return mb, nil
		},
		OnResponded: func(l domain.Lead) {
			a.bus.Emit(context.Background(), "", events.LeadUpdated, l)
		},
	}, nil
}

// countCollab bumps the per-service error counter for a failed run.
func countCollab(err error) {
	var ce *domain.CollaboratorError
	if errors.As(err, &ce) {
		metrics.CollaboratorError(ce.Service)
	}
}

// prunedDir keeps at most keep snapshots after every write.
type prunedDir struct {
	*backup.Dir
	keep int
	log  *zap.Logger
}

func (p *prunedDir) Write(ctx context.Context, snapshot []byte) (string, error) {
	path, err := p.Dir.Write(ctx, snapshot)
	if err != nil {
		return "", err
	}
	if n, err := p.Dir.Prune(p.keep); err != nil {
		p.log.Warn("backup prune failed", zap.Error(err))
	} else if n > 0 {
		p.log.Debug("backups pruned", zap.Int("removed", n))
	}
	return path, nil
}
