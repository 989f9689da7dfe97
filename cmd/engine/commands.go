package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leadhunt-engine/internal/backup"
	"leadhunt-engine/internal/export"
	"leadhunt-engine/internal/metrics"
	"leadhunt-engine/internal/store"
)

// withApp bootstraps the engine for a one-shot command and closes it after.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		return fn(ctx, a, args)
	}
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run one GitHub discovery pass",
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		sum, err := a.discovery(a.cfg()).RunOnce(ctx)
		if err != nil {
			return err
		}
		metrics.Discovery(sum.Sources, sum.Errors)
		return printJSON(os.Stdout, sum)
	}),
}

var scoreLimit int

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score leads that have no AI score yet",
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		cfg := a.cfg()
		r, err := a.scoring(ctx, cfg)
		if err != nil {
			return err
		}
		limit := cfg.Scoring.BatchLimit
		if scoreLimit > 0 {
			limit = scoreLimit
		}
		sum, err := r.Run(ctx, limit)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, sum)
	}),
}

var (
	sendDryRun bool
	sendIDs    []string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Email approved leads, honouring the daily limit",
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		camp, err := a.outreach(a.cfg())
		if err != nil {
			return err
		}
		rep, err := camp.Send(ctx, sendIDs, sendDryRun)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, rep)
	}),
}

var exportCmd = &cobra.Command{
	Use:       "export full|campaign|analytics",
	Short:     "Write an export file under exports.dir",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"full", "campaign", "analytics"},
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		leads, err := a.store.List(ctx)
		if err != nil {
			return err
		}
		cfg := a.cfg()
		dir := cfg.Resolve(cfg.Exports.Dir)
		now := time.Now().UTC()

		var path string
		switch args[0] {
		case "full":
			path, err = export.Full(leads, dir, now)
		case "campaign":
			path, err = export.Campaign(leads, dir, now)
		case "analytics":
			var sum export.Summary
			sum, path, err = export.Analytics(leads, dir, now)
			if err == nil {
				err = printJSON(os.Stdout, sum)
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, path)
		return nil
	}),
}

type importReport struct {
	Read      int      `json:"read"`
	Added     int      `json:"added"`
	Duplicate int      `json:"duplicate"`
	Malformed []string `json:"malformed,omitempty"`
	Invalid   []string `json:"invalid,omitempty"`
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Copy leads from a CSV lead table into the configured store",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		leads, malformed, err := store.ReadLeads(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		rep := importReport{Read: len(leads)}
		for _, m := range malformed {
			rep.Malformed = append(rep.Malformed, m.Error())
		}
		for _, l := range leads {
			_, added, err := a.store.Insert(ctx, l)
			switch {
			case errors.Is(err, store.ErrInvalidLead):
				rep.Invalid = append(rep.Invalid, l.Key())
			case errors.Is(err, store.ErrAlreadyExists):
				rep.Duplicate++
			case err != nil:
				return err
			case added:
				rep.Added++
			default:
				rep.Duplicate++
			}
		}
		a.log.Info("import finished",
			zap.String("file", args[0]),
			zap.Int("added", rep.Added),
			zap.Int("duplicate", rep.Duplicate),
			zap.Int("malformed", len(rep.Malformed)),
		)
		return printJSON(os.Stdout, rep)
	}),
}

var repliesCmd = &cobra.Command{
	Use:   "replies",
	Short: "Check the mailbox once for replies from contacted leads",
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		p, err := a.replies(a.cfg())
		if err != nil {
			return err
		}
		sum, err := p.RunOnce(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, sum)
	}),
}

var pruneKeep int

var pruneCmd = &cobra.Command{
	Use:   "prune-backups",
	Short: "Delete all but the newest backup snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		cfg := a.cfg()
		if strings.TrimSpace(cfg.Store.BackupDir) == "" {
			return errors.New("store.backup_dir is not configured")
		}
		keep := cfg.Store.BackupKeep
		if cmd.Flags().Changed("keep") {
			keep = pruneKeep
		}
		if keep <= 0 {
			return errors.New("nothing to prune: keep must be > 0")
		}
		n, err := backup.NewDir(cfg.Resolve(cfg.Store.BackupDir)).Prune(keep)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, map[string]int{"removed": n, "kept": keep})
	},
}

func init() {
	scoreCmd.Flags().IntVar(&scoreLimit, "limit", 0, "Score at most this many leads (default scoring.batch_limit)")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "Render messages without sending or changing leads")
	sendCmd.Flags().StringSliceVar(&sendIDs, "ids", nil, "Lead ids to send to (default every ready lead)")
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "Snapshots to keep (default store.backup_keep)")

	rootCmd.AddCommand(discoverCmd, scoreCmd, sendCmd, exportCmd, importCmd, repliesCmd, pruneCmd)
}
