// seed inserts development sample data for local testing: a tenant with a resource-scope
// policy, a super admin and a tenant admin whose role holds every console permission.
// Idempotent: skips inserts if the super admin (root@example.com) already exists.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hugo617/healthcare-admin-sub001/internal/config"
	"github.com/hugo617/healthcare-admin-sub001/internal/db"
	permdomain "github.com/hugo617/healthcare-admin-sub001/internal/permission/domain"
	permissionrepo "github.com/hugo617/healthcare-admin-sub001/internal/permission/repository"
	policydomain "github.com/hugo617/healthcare-admin-sub001/internal/policy/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/policy/engine"
	policyrepo "github.com/hugo617/healthcare-admin-sub001/internal/policy/repository"
	"github.com/hugo617/healthcare-admin-sub001/internal/security"
	tenantdomain "github.com/hugo617/healthcare-admin-sub001/internal/tenant/domain"
	tenantrepo "github.com/hugo617/healthcare-admin-sub001/internal/tenant/repository"
	userdomain "github.com/hugo617/healthcare-admin-sub001/internal/user/domain"
	userrepo "github.com/hugo617/healthcare-admin-sub001/internal/user/repository"
)

const (
	superAdminEmail = "root@example.com"
	adminEmail      = "admin@dev.example.com"
	nurseEmail      = "nurse@dev.example.com"
	devPassword     = "password123"
	devSubdomain    = "dev"
)

var seedPermissions = []permdomain.Permission{
	{Code: permdomain.CodeAuditRead, Name: "Read audit logs"},
	{Code: permdomain.CodeSessionCleanup, Name: "Clean up sessions"},
	{Code: permdomain.CodeSessionRevoke, Name: "Revoke sessions"},
	{Code: permdomain.CodeTenantSwitch, Name: "Switch tenant"},
}

func main() {
	cfg, err := config.LoadForTool()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(conn)
	tenants := tenantrepo.NewPostgresRepository(conn)
	perms := permissionrepo.NewPostgresRepository(conn)
	var policies policyrepo.Repository = policyrepo.NewPostgresRepository(conn)

	existing, err := users.GetSuperAdminByAccount(ctx, superAdminEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", superAdminEmail)
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash(devPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()

	t := &tenantdomain.Tenant{Name: "Dev Clinic", Code: "dev", Subdomain: devSubdomain, Status: tenantdomain.TenantStatusActive, CreatedAt: now}
	if err := tenants.Create(ctx, t); err != nil {
		log.Fatalf("create tenant: %v", err)
	}

	scopePolicy := &policydomain.Policy{ID: uuid.NewString(), TenantID: t.ID, Rules: engine.AdminOnlyCleanupPolicy, Enabled: true, CreatedAt: now}
	if err := policies.Create(ctx, scopePolicy); err != nil {
		log.Fatalf("create scope policy: %v", err)
	}

	adminRole, err := createRole(ctx, conn, t.ID, "admin", now)
	if err != nil {
		log.Fatalf("create admin role: %v", err)
	}
	staffRole, err := createRole(ctx, conn, t.ID, "staff", now)
	if err != nil {
		log.Fatalf("create staff role: %v", err)
	}

	for i := range seedPermissions {
		p := &seedPermissions[i]
		if err := perms.Create(ctx, p); err != nil {
			log.Fatalf("create permission %s: %v", p.Code, err)
		}
		if err := perms.Grant(ctx, permdomain.RolePermission{RoleID: adminRole, PermissionID: p.ID, TenantID: t.ID}); err != nil {
			log.Fatalf("grant %s: %v", p.Code, err)
		}
	}

	for _, u := range []*userdomain.User{
		{Email: superAdminEmail, Username: "root", IsSuperAdmin: true},
		{TenantID: t.ID, Email: adminEmail, Username: "admin", RoleID: adminRole},
		{TenantID: t.ID, Email: nurseEmail, Username: "nurse", RoleID: staffRole},
	} {
		u.PasswordHash = passwordHash
		u.Status = userdomain.UserStatusActive
		u.CreatedAt, u.UpdatedAt = now, now
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", u.Email, err)
		}
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Super admin login: %s / %s\n", superAdminEmail, devPassword)
	fmt.Printf("Tenant admin login (%s.<TENANT_BASE_DOMAIN> or X-Tenant-ID: %d): %s / %s\n", devSubdomain, t.ID, adminEmail, devPassword)
	fmt.Printf("Staff login: %s / %s\n", nurseEmail, devPassword)
}

func createRole(ctx context.Context, conn *sql.DB, tenantID int64, name string, at time.Time) (int64, error) {
	var id int64
	err := conn.QueryRowContext(ctx, `INSERT INTO roles (tenant_id, name, created_at) VALUES ($1, $2, $3) RETURNING id`,
		tenantID, name, at).Scan(&id)
	return id, err
}
