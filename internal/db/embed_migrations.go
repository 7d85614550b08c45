package db

import "embed"

// MigrationFS holds the schema migrations (tenants, roles, users, permissions,
// sessions, policies, audit_logs). Applied by internal/db/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
