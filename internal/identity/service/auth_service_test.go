package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hugo617/healthcare-admin-sub001/internal/audit"
	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/authctx"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/rbac"
	"github.com/hugo617/healthcare-admin-sub001/internal/security"
	sessiondomain "github.com/hugo617/healthcare-admin-sub001/internal/session/domain"
	sessionservice "github.com/hugo617/healthcare-admin-sub001/internal/session/service"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
	tenantdomain "github.com/hugo617/healthcare-admin-sub001/internal/tenant/domain"
	userdomain "github.com/hugo617/healthcare-admin-sub001/internal/user/domain"
)

const testPassword = "Sup3r-Secret!"

type memTenantRepo struct {
	tenants map[int64]*tenantdomain.Tenant
}

func (r *memTenantRepo) GetByID(ctx context.Context, id int64) (*tenantdomain.Tenant, error) {
	return r.tenants[id], nil
}

func (r *memTenantRepo) GetBySubdomain(ctx context.Context, sub string) (*tenantdomain.Tenant, error) {
	for _, t := range r.tenants {
		if strings.EqualFold(t.Subdomain, sub) {
			return t, nil
		}
	}
	return nil, nil
}

type memUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*userdomain.User
	logins map[int64]time.Time
	err    error
}

func (r *memUserRepo) GetByID(ctx context.Context, id int64) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], r.err
}

func (r *memUserRepo) GetByAccount(ctx context.Context, scope tenant.Scope, account string) (*userdomain.User, error) {
	if err := scope.Check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.TenantID == scope.ID() && (strings.EqualFold(u.Email, account) || u.Username == account) {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetSuperAdminByAccount(ctx context.Context, account string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.IsSuperAdmin && (strings.EqualFold(u.Email, account) || u.Username == account) {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins[id] = at
	return nil
}

// fakeSessions keeps sessions keyed by token digest.
type fakeSessions struct {
	mu        sync.Mutex
	byHash    map[string]*sessiondomain.Session
	created   []sessionservice.CreateParams
	revokeErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byHash: map[string]*sessiondomain.Session{}}
}

func (f *fakeSessions) CreateSession(ctx context.Context, p sessionservice.CreateParams) (*sessiondomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	s := &sessiondomain.Session{
		ID: uuid.NewString(), UserID: p.UserID, TokenHash: security.HashToken(p.Token),
		CreatedAt: now, LastAccessedAt: now, ExpiresAt: now.Add(time.Hour), IsActive: true,
	}
	f.byHash[s.TokenHash] = s
	f.created = append(f.created, p)
	return s, nil
}

func (f *fakeSessions) VerifyToken(ctx context.Context, token string) (*sessiondomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.byHash[security.HashToken(token)]
	if s == nil || !s.IsActive {
		return nil, nil
	}
	return s, nil
}

func (f *fakeSessions) RevokeSession(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return false, f.revokeErr
	}
	for _, s := range f.byHash {
		if s.ID == id && s.IsActive {
			s.IsActive = false
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSessions) active(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byHash {
		if s.ID == id {
			return s.IsActive
		}
	}
	return false
}

type auditEntry struct {
	tenantID, userID int64
	action           string
}

type captureAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (c *captureAudit) LogEvent(ctx context.Context, tenantID, userID int64, action, resource, metadata string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, auditEntry{tenantID, userID, action})
}

func (c *captureAudit) last() auditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return auditEntry{}
	}
	return c.entries[len(c.entries)-1]
}

type fixture struct {
	svc      *AuthService
	auth     *Authenticator
	users    *memUserRepo
	tenants  *memTenantRepo
	sessions *fakeSessions
	audit    *captureAudit
	tokens   *security.TokenCodec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher := security.NewHasher(4)
	digest, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	users := &memUserRepo{logins: map[int64]time.Time{}, users: map[int64]*userdomain.User{
		10: {ID: 10, TenantID: 1, Email: "nurse@one.test", Username: "nurse", RoleID: 7, PasswordHash: digest, Status: userdomain.UserStatusActive},
		11: {ID: 11, TenantID: 2, Email: "nurse@two.test", Username: "nurse", RoleID: 7, PasswordHash: digest, Status: userdomain.UserStatusActive},
		12: {ID: 12, TenantID: 1, Email: "gone@one.test", Username: "gone", PasswordHash: digest, Status: userdomain.UserStatusDisabled},
		1:  {ID: 1, TenantID: 1, Email: "root@console.test", Username: "root", IsSuperAdmin: true, PasswordHash: digest, Status: userdomain.UserStatusActive},
	}}
	tenants := &memTenantRepo{tenants: map[int64]*tenantdomain.Tenant{
		1: {ID: 1, Name: "Clinic One", Code: "one", Subdomain: "one", Status: tenantdomain.TenantStatusActive},
		2: {ID: 2, Name: "Clinic Two", Code: "two", Subdomain: "two", Status: tenantdomain.TenantStatusActive},
		3: {ID: 3, Name: "Closed", Code: "closed", Subdomain: "closed", Status: tenantdomain.TenantStatusSuspended},
	}}
	resolver := tenant.NewResolver(tenants, tenant.ResolverConfig{BaseDomain: "console.test"})
	manager := tenant.NewManager(tenants)
	sessions := newFakeSessions()
	tokens := security.NewTestTokenCodec()
	cap := &captureAudit{}
	return &fixture{
		svc:      NewAuthService(users, hasher, tokens, sessions, resolver, manager, cap),
		auth:     NewAuthenticator(tokens, sessions, resolver, manager),
		users:    users,
		tenants:  tenants,
		sessions: sessions,
		audit:    cap,
		tokens:   tokens,
	}
}

func request(host, path string, kv ...string) client.Request {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return client.Request{Host: host, Path: path, Header: h}
}

func TestLogin_ResolvesTenantBySubdomain(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Login(context.Background(), LoginInput{
		Account: "nurse", Password: testPassword,
		Request: request("two.console.test", "/api/auth/login"),
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.ID != 11 || res.User.TenantID != 2 {
		t.Errorf("user = %+v, want id 11 in tenant 2", res.User)
	}
	if res.Tenant == nil || res.Tenant.ID != 2 {
		t.Errorf("tenant = %+v, want tenant 2", res.Tenant)
	}
	if res.ClientType != client.ClientAdmin {
		t.Errorf("client type = %q, want admin", res.ClientType)
	}
	claims, err := f.tokens.Verify(res.Token)
	if err != nil || claims.TenantID != 2 {
		t.Fatalf("token claims = %+v, %v", claims, err)
	}
	if _, ok := f.users.logins[11]; !ok {
		t.Error("last login should be recorded")
	}
	if got := f.audit.last(); got.action != audit.ActionLogin || got.userID != 11 || got.tenantID != 2 {
		t.Errorf("audit = %+v", got)
	}
}

func TestLogin_H5AndRememberMe(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), LoginInput{
		Account: "nurse@one.test", Password: testPassword,
		Request:     request("one.console.test", "/api/h5/auth/login"),
		SessionMeta: SessionMeta{LongLived: true, DeviceID: "dev-1", UserAgent: "Mozilla/5.0 (iPhone)"},
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	p := f.sessions.created[0]
	if p.ClientType != client.ClientH5 || !p.LongLived || p.DeviceID != "dev-1" {
		t.Errorf("create params = %+v", p)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	testCases := []struct {
		name     string
		account  string
		password string
		host     string
	}{
		{"wrong password", "nurse", "nope", "one.console.test"},
		{"unknown account", "ghost", testPassword, "one.console.test"},
		{"disabled user", "gone", testPassword, "one.console.test"},
		{"no tenant for tenant user", "nurse", testPassword, "localhost"},
		{"empty account", "  ", testPassword, "one.console.test"},
		{"empty password", "nurse", "", "one.console.test"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Login(context.Background(), LoginInput{
				Account: tc.account, Password: tc.password,
				Request: request(tc.host, "/api/auth/login"),
			})
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("Login err = %v, want ErrInvalidCredentials", err)
			}
			if len(f.sessions.created) != 0 {
				t.Error("no session may be created on failure")
			}
		})
	}
}

func TestLogin_FailureIsAudited(t *testing.T) {
	f := newFixture(t)
	_, _ = f.svc.Login(context.Background(), LoginInput{
		Account: "nurse", Password: "bad", Request: request("one.console.test", "/api/auth/login"),
	})
	if got := f.audit.last(); got.action != audit.ActionLoginFailure || got.userID != 0 {
		t.Errorf("audit = %+v, want login_failure without user", got)
	}
}

func TestLogin_InactiveTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), LoginInput{
		Account: "nurse", Password: testPassword, Request: request("closed.console.test", "/api/auth/login"),
	})
	if !errors.Is(err, tenant.ErrTenantInactive) {
		t.Fatalf("Login err = %v, want ErrTenantInactive", err)
	}
}

func TestLogin_SuperAdminWithoutTenant(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Login(context.Background(), LoginInput{
		Account: "root", Password: testPassword, Request: request("localhost:8080", "/api/auth/login"),
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.User.IsSuperAdmin || res.User.TenantID != 1 || res.Tenant != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Login(context.Background(), LoginInput{
		Account: "nurse", Password: testPassword, Request: request("one.console.test", "/api/auth/login"),
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.svc.Logout(context.Background(), res.SessionID); err != nil {
			t.Fatalf("Logout #%d: %v", i+1, err)
		}
	}
	if f.sessions.active(res.SessionID) {
		t.Error("session should be inactive after logout")
	}
	if err := f.svc.Logout(context.Background(), ""); err != nil {
		t.Errorf("Logout(\"\") = %v", err)
	}
}

func loginRoot(t *testing.T, f *fixture) (*AuthResult, *authctx.Principal) {
	t.Helper()
	res, err := f.svc.Login(context.Background(), LoginInput{
		Account: "root", Password: testPassword, Request: request("one.console.test", "/api/auth/login"),
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return res, &authctx.Principal{User: res.User, SessionID: res.SessionID, Token: res.Token, ClientType: client.ClientAdmin}
}

func TestSwitchTenant_RevokesAndRecreates(t *testing.T) {
	f := newFixture(t)
	old, p := loginRoot(t, f)

	res, err := f.svc.SwitchTenant(context.Background(), p, 2, SessionMeta{})
	if err != nil {
		t.Fatalf("SwitchTenant: %v", err)
	}
	if res.SessionID == old.SessionID || res.Token == old.Token {
		t.Fatal("switch must issue a new token and session")
	}
	if res.User.TenantID != 2 || res.Tenant == nil || res.Tenant.ID != 2 {
		t.Errorf("result = %+v", res)
	}
	if f.sessions.active(old.SessionID) {
		t.Error("old session should be revoked")
	}
	if !f.sessions.active(res.SessionID) {
		t.Error("new session should be active")
	}
	if got := f.audit.last(); got.action != audit.ActionTenantSwitch || got.tenantID != 2 {
		t.Errorf("audit = %+v", got)
	}
}

func TestSwitchTenant_Rejections(t *testing.T) {
	f := newFixture(t)
	old, root := loginRoot(t, f)
	nurse := &authctx.Principal{User: security.AuthUser{ID: 10, TenantID: 1}, SessionID: "s"}

	testCases := []struct {
		name    string
		p       *authctx.Principal
		target  int64
		wantErr error
	}{
		{"no principal", nil, 2, rbac.ErrUnauthorized},
		{"not super admin", nurse, 2, rbac.ErrForbidden},
		{"unknown tenant", root, 99, tenant.ErrTenantNotFound},
		{"suspended tenant", root, 3, tenant.ErrTenantInactive},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SwitchTenant(context.Background(), tc.p, tc.target, SessionMeta{})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("SwitchTenant err = %v, want %v", err, tc.wantErr)
			}
		})
	}
	if !f.sessions.active(old.SessionID) {
		t.Error("a failed switch must leave the caller's session active")
	}
	if len(f.sessions.created) != 1 {
		t.Errorf("sessions created = %d, want only the login", len(f.sessions.created))
	}
}

func TestSwitchTenant_RevokeFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	_, p := loginRoot(t, f)
	f.sessions.revokeErr = errors.New("db down")

	if _, err := f.svc.SwitchTenant(context.Background(), p, 2, SessionMeta{}); err == nil {
		t.Fatal("SwitchTenant should fail when the old session cannot be revoked")
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Login(context.Background(), LoginInput{
		Account: "nurse", Password: testPassword, Request: request("one.console.test", "/api/auth/login"),
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ctx, p, err := f.auth.Authenticate(context.Background(),
		request("localhost", "/api/h5/records", "Authorization", "Bearer "+res.Token), "10.0.0.5")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.User.ID != 10 || p.SessionID != res.SessionID || p.ClientType != client.ClientH5 {
		t.Errorf("principal = %+v", p)
	}
	if id := tenant.CurrentID(ctx); id != 1 {
		t.Errorf("current tenant = %d, want 1 from the token claim", id)
	}
	if got, _ := authctx.GetPrincipal(ctx); got != p {
		t.Error("principal should be stored on the context")
	}
	if ip := authctx.GetClientIP(ctx); ip != "10.0.0.5" {
		t.Errorf("client ip = %q", ip)
	}

	// Cookie transport works the same way.
	if _, _, err := f.auth.Authenticate(context.Background(),
		request("localhost", "/api/records", "Cookie", client.CookieName+"="+res.Token), ""); err != nil {
		t.Errorf("Authenticate via cookie: %v", err)
	}

	// After logout the token is still signed but no longer bound to an active session.
	if err := f.svc.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, _, err := f.auth.Authenticate(context.Background(),
		request("localhost", "/api/records", "Authorization", "Bearer "+res.Token), ""); !errors.Is(err, rbac.ErrUnauthorized) {
		t.Errorf("Authenticate after logout = %v, want ErrUnauthorized", err)
	}
}

func TestAuthenticate_SuspendedTenantStillYieldsSession(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Login(context.Background(), LoginInput{
		Account: "nurse", Password: testPassword, Request: request("one.console.test", "/api/auth/login"),
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	f.tenants.tenants[1].Status = tenantdomain.TenantStatusSuspended

	ctx, p, err := f.auth.Authenticate(context.Background(),
		request("localhost", "/api/auth/logout", "Authorization", "Bearer "+res.Token), "")
	if !errors.Is(err, tenant.ErrTenantInactive) {
		t.Fatalf("Authenticate err = %v, want ErrTenantInactive", err)
	}
	if p == nil || p.SessionID != res.SessionID {
		t.Fatalf("principal = %+v, want session %s", p, res.SessionID)
	}
	if _, ok := authctx.GetPrincipal(ctx); ok {
		t.Error("principal must not be stored on the context when the tenant is rejected")
	}
	if tenant.CurrentID(ctx) != 0 {
		t.Error("no tenant may be entered for a suspended tenant")
	}

	if err := f.svc.Logout(context.Background(), p.SessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if f.sessions.active(res.SessionID) {
		t.Error("session should be revoked even though its tenant is suspended")
	}

	f.tenants.tenants[1].Status = tenantdomain.TenantStatusActive
	if _, _, err := f.auth.Authenticate(context.Background(),
		request("localhost", "/api/records", "Authorization", "Bearer "+res.Token), ""); !errors.Is(err, rbac.ErrUnauthorized) {
		t.Errorf("Authenticate after reactivation = %v, want ErrUnauthorized", err)
	}
}

func TestAuthenticate_Unauthorized(t *testing.T) {
	f := newFixture(t)
	// Signed token with no session behind it.
	orphan, _ := f.tokens.Issue(security.AuthUser{ID: 10, TenantID: 1}, false)

	for name, req := range map[string]client.Request{
		"no token":      request("localhost", "/api/records"),
		"garbage token": request("localhost", "/api/records", "Authorization", "Bearer nope"),
		"no session":    request("localhost", "/api/records", "Authorization", "Bearer "+orphan),
	} {
		t.Run(name, func(t *testing.T) {
			ctx, p, err := f.auth.Authenticate(context.Background(), req, "")
			if !errors.Is(err, rbac.ErrUnauthorized) || p != nil {
				t.Fatalf("Authenticate = %v, %v; want ErrUnauthorized", p, err)
			}
			if _, ok := authctx.GetPrincipal(ctx); ok {
				t.Error("no principal may be stored on failure")
			}
		})
	}
}
