package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/httpapi"
	"leadhunt-engine/internal/metrics"
	"leadhunt-engine/internal/scheduler"
	"leadhunt-engine/internal/secrets"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API with scheduled discovery and reply polling",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port on 127.0.0.1 (default app.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	cfg := a.cfg()
	log := a.log

	disc := a.discovery(cfg)
	deps := httpapi.Deps{
		Store:       a.store,
		Workflow:    a.workflow,
		Hub:         a.hub,
		Bus:         a.bus,
		Log:         log,
		CfgVal:      a.cfgVal,
		UserCfgPath: a.userCfgPath,
		LoadCfg:     a.loadCfg,
		Discovery:   disc,
		Scoring: func(cfg config.Config) (httpapi.ScoreRunner, error) {
			r, err := a.scoring(context.Background(), cfg)
			if err != nil {
				countCollab(err)
				return nil, err
			}
			return r, nil
		},
		Outreach: func(cfg config.Config) (httpapi.Outreach, error) {
			return a.outreach(cfg)
		},
		SetSecret: func(_, account, password string) error {
			return secrets.Set(account, password)
		},
		Checks: map[string]func(context.Context) error{
			"store": func(ctx context.Context) error {
				_, err := a.store.List(ctx)
				return err
			},
		},
	}
	if a.amqp != nil {
		deps.Checks["amqp"] = func(context.Context) error {
			if !a.amqp.Healthy() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	router := httpapi.NewRouter(deps)

	port := cfg.App.Port
	if servePort != 0 {
		port = servePort
	}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	token, err := shutdownToken(cfg.App.DataDir)
	if err != nil {
		return err
	}
	router.With(httpapi.LocalOnly).Post("/shutdown", shutdownHandler(&token, srv))

	go scheduler.Every(ctx, time.Duration(cfg.Polling.DiscoveryMinutes)*time.Minute, "discovery", log, func(ctx context.Context) error {
		sum, err := disc.RunOnce(ctx)
		if err != nil {
			return err
		}
		metrics.Discovery(sum.Sources, sum.Errors)
		a.bus.Emit(ctx, "", events.DiscoveryFinished, sum)
		return nil
	})
	if cfg.IMAP.Enabled {
		poller, err := a.replies(cfg)
		if err != nil {
			return err
		}
		go scheduler.Every(ctx, time.Duration(cfg.Polling.ReplySeconds)*time.Second, "replies", log, func(ctx context.Context) error {
			sum, err := poller.RunOnce(ctx)
			if err != nil {
				countCollab(err)
				return err
			}
			a.bus.Emit(ctx, "", events.RepliesChecked, sum)
			return nil
		})
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("engine listening", zap.String("addr", "http://"+addr), zap.String("store", cfg.Store.Backend))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info("engine stopped")
	return nil
}

// shutdownToken uses $LEADHUNT_SHUTDOWN_TOKEN when set, otherwise a fresh
// random token written to <dataDir>/shutdown.token for the desktop shell.
func shutdownToken(dataDir string) (string, error) {
	if v := os.Getenv("LEADHUNT_SHUTDOWN_TOKEN"); v != "" {
		return v, nil
	}
	tok, err := randomToken(32)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dataDir, "shutdown.token"), []byte(tok+"\n"), 0o600); err != nil {
		return "", err
	}
	return tok, nil
}
