// cleanup deletes expired sessions and inactive sessions older than -days. Meant to be run
// by an external scheduler (cron, Kubernetes CronJob).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hugo617/healthcare-admin-sub001/internal/audit"
	auditrepo "github.com/hugo617/healthcare-admin-sub001/internal/audit/repository"
	"github.com/hugo617/healthcare-admin-sub001/internal/config"
	"github.com/hugo617/healthcare-admin-sub001/internal/db"
	sessionrepo "github.com/hugo617/healthcare-admin-sub001/internal/session/repository"
	sessionservice "github.com/hugo617/healthcare-admin-sub001/internal/session/service"
)

func main() {
	days := flag.Int("days", 0, "Keep inactive sessions for this many days (default SESSION_RETENTION_DAYS)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	zap.ReplaceGlobals(logger)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadForTool()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	keep := *days
	if keep <= 0 {
		keep = cfg.SessionRetentionDays
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sessions := sessionservice.NewManager(sessionrepo.NewPostgresRepository(conn), sessionservice.Config{})
	n, err := sessions.CleanupExpiredSessions(ctx, keep)
	if err != nil {
		logger.Error("cleanup failed", zap.Error(err))
		os.Exit(1)
	}
	audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil, nil).
		LogEvent(ctx, 0, 0, audit.ActionSessionCleanup, audit.ResourceSession,
			audit.Metadata(map[string]any{"daysToKeep": keep, "deleted": n}))
	logger.Info("session cleanup done", zap.Int("days_to_keep", keep), zap.Int64("deleted", n))
}
