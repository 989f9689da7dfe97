package httpapi

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/discover"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/outreach"
	"leadhunt-engine/internal/scoring"
	"leadhunt-engine/internal/store"
	"leadhunt-engine/internal/workflow"
)

type Discoverer interface {
	RunOnce(ctx context.Context) (discover.Summary, error)
	Last() (discover.Summary, bool)
	Running() bool
}

type ScoreRunner interface {
	Run(ctx context.Context, limit int) (scoring.Summary, error)
}

type Outreach interface {
	Send(ctx context.Context, ids []string, dryRun bool) (outreach.Report, error)
}

type Deps struct {
	Store    store.LeadStore
	Workflow *workflow.Service
	Hub      *events.Hub
	Bus      *events.Bus
	Log      *zap.Logger

	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Built per request from the current config so edits apply without restart.
	Discovery Discoverer
	Scoring   func(cfg config.Config) (ScoreRunner, error)
	Outreach  func(cfg config.Config) (Outreach, error)

	SetSecret func(kind, account, password string) error
	Checks    map[string]func(ctx context.Context) error
	Origins   []string
	Now       func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}

func (d Deps) config() config.Config {
	if d.CfgVal == nil {
		return config.Default()
	}
	if cfg, ok := d.CfgVal.Load().(config.Config); ok {
		return cfg
	}
	return config.Default()
}
