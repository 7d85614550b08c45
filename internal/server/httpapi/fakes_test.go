package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	auditdomain "github.com/hugo617/healthcare-admin-sub001/internal/audit/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/health"
	identityservice "github.com/hugo617/healthcare-admin-sub001/internal/identity/service"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/authctx"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/rbac"
	"github.com/hugo617/healthcare-admin-sub001/internal/security"
	sessiondomain "github.com/hugo617/healthcare-admin-sub001/internal/session/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
	tenantdomain "github.com/hugo617/healthcare-admin-sub001/internal/tenant/domain"
)

var (
	acme   = &tenantdomain.Tenant{ID: 1, Name: "Acme Clinic", Code: "acme", Subdomain: "acme", Status: tenantdomain.TenantStatusActive}
	nurse  = security.AuthUser{ID: 10, Username: "nurse", TenantID: 1, RoleID: 5}
	root   = security.AuthUser{ID: 1, Username: "root", IsSuperAdmin: true}
	maxAge = "Max-Age=0"
)

// fakeAuthenticator accepts "nurse-token" and "root-token" bearer tokens. "suspended-token"
// verifies but its tenant is inactive.
type fakeAuthenticator struct{}

func (fakeAuthenticator) Authenticate(ctx context.Context, req client.Request, ip string) (context.Context, *authctx.Principal, error) {
	ct := client.Detect(req)
	ctx = authctx.WithClientType(ctx, ct)
	ctx = authctx.WithClientIP(ctx, ip)
	var p *authctx.Principal
	switch client.ExtractToken(req) {
	case "nurse-token":
		p = &authctx.Principal{User: nurse, SessionID: "s-nurse", Token: "nurse-token", ClientType: ct}
		ctx = tenant.Push(ctx, acme)
	case "root-token":
		p = &authctx.Principal{User: root, SessionID: "s-root", Token: "root-token", ClientType: ct}
	case "suspended-token":
		p = &authctx.Principal{User: nurse, SessionID: "s-suspended", Token: "suspended-token", ClientType: ct}
		return ctx, p, tenant.ErrTenantInactive
	default:
		return ctx, nil, rbac.ErrUnauthorized
	}
	return authctx.WithPrincipal(ctx, p), p, nil
}

type fakeAuthAPI struct {
	mu         sync.Mutex
	logins     []identityservice.LoginInput
	loggedOut  []string
	switchedTo int64
	switchErr  error
}

func (f *fakeAuthAPI) Login(ctx context.Context, in identityservice.LoginInput) (*identityservice.AuthResult, error) {
	f.mu.Lock()
	f.logins = append(f.logins, in)
	f.mu.Unlock()
	if in.Password != "right" {
		return nil, identityservice.ErrInvalidCredentials
	}
	return &identityservice.AuthResult{
		Token:      "nurse-token",
		SessionID:  "s-nurse",
		ExpiresAt:  time.Now().Add(time.Hour),
		User:       nurse,
		Tenant:     acme,
		ClientType: client.Detect(in.Request),
	}, nil
}

func (f *fakeAuthAPI) Logout(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, sessionID)
	return nil
}

func (f *fakeAuthAPI) SwitchTenant(ctx context.Context, p *authctx.Principal, tenantID int64, meta identityservice.SessionMeta) (*identityservice.AuthResult, error) {
	if !p.User.IsSuperAdmin {
		return nil, rbac.ErrForbidden
	}
	if f.switchErr != nil {
		return nil, f.switchErr
	}
	f.switchedTo = tenantID
	u := p.User
	u.TenantID = tenantID
	return &identityservice.AuthResult{Token: "root-token-2", SessionID: "s-root-2", ExpiresAt: time.Now().Add(time.Hour), User: u, ClientType: p.ClientType}, nil
}

type fakeTokens struct{}

func (fakeTokens) RemainingSeconds(token string) int64 {
	if token == "nurse-token" {
		return 3600
	}
	return -5
}

// fakeGuard grants nurse only the codes in perms; root passes everything.
type fakeGuard struct {
	perms map[string]bool
}

func (g fakeGuard) RequirePermission(ctx context.Context, code, resourceID string, req *client.Request) error {
	p, ok := authctx.GetPrincipal(ctx)
	if !ok {
		return rbac.ErrUnauthorized
	}
	if p.User.IsSuperAdmin || g.perms[code] {
		return nil
	}
	return rbac.ErrForbidden
}

func (g fakeGuard) GetUserPermissions(ctx context.Context, userID int64) ([]string, error) {
	var out []string
	for c := range g.perms {
		out = append(out, c)
	}
	return out, nil
}

type fakeSessions struct {
	mu        sync.Mutex
	items     map[int64][]sessiondomain.ListItem
	revoked   []string
	revokeCT  client.ClientType
	cleanDays int
	err       error
}

func (f *fakeSessions) GetUserSessions(ctx context.Context, userID int64, currentSessionID string) ([]sessiondomain.ListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []sessiondomain.ListItem
	for _, it := range f.items[userID] {
		it.IsCurrent = it.ID == currentSessionID
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeSessions) RevokeSession(ctx context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, sessionID)
	return true, nil
}

func (f *fakeSessions) RevokeAllUserSessions(ctx context.Context, userID int64, ct client.ClientType) (int64, error) {
	f.revokeCT = ct
	return 3, nil
}

func (f *fakeSessions) RevokeOtherSessions(ctx context.Context, userID int64, currentSessionID string, ct client.ClientType) (int64, error) {
	f.revokeCT = ct
	return 2, nil
}

func (f *fakeSessions) CleanupExpiredSessions(ctx context.Context, daysToKeep int) (int64, error) {
	f.cleanDays = daysToKeep
	return 7, nil
}

type auditCall struct {
	tenantID, userID int64
	action           string
}

type captureAudit struct {
	mu    sync.Mutex
	calls []auditCall
}

func (c *captureAudit) LogEvent(ctx context.Context, tenantID, userID int64, action, resource, metadata string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, auditCall{tenantID, userID, action})
}

func (c *captureAudit) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, call := range c.calls {
		out = append(out, call.action)
	}
	return out
}

type fakeAuditLister struct {
	gotScope  int64
	gotLimit  int
	gotOffset int
}

func (f *fakeAuditLister) ListByTenant(ctx context.Context, scope tenant.Scope, limit, offset int) ([]*auditdomain.AuditLog, error) {
	if err := scope.Check(); err != nil {
		return nil, err
	}
	f.gotScope, f.gotLimit, f.gotOffset = scope.ID(), limit, offset
	return []*auditdomain.AuditLog{{ID: "a1", TenantID: scope.ID(), UserID: 10, Action: "login", Resource: "auth", IP: "10.0.0.1", Metadata: `{"resource":"auth"}`}}, nil
}

type fakeHealth struct{ rep health.Report }

func (f fakeHealth) Check(ctx context.Context) health.Report { return f.rep }

type testEnv struct {
	deps     Deps
	handler  http.Handler
	auth     *fakeAuthAPI
	sessions *fakeSessions
	audit    *captureAudit
	lister   *fakeAuditLister
}

func newTestEnv(perms ...string) *testEnv {
	granted := map[string]bool{}
	for _, p := range perms {
		granted[p] = true
	}
	env := &testEnv{
		auth:   &fakeAuthAPI{},
		audit:  &captureAudit{},
		lister: &fakeAuditLister{},
		sessions: &fakeSessions{items: map[int64][]sessiondomain.ListItem{
			10: {{ID: "s-nurse", DeviceType: client.DeviceWeb}, {ID: "s-nurse-phone", DeviceType: client.DeviceMobile}},
		}},
	}
	guard := fakeGuard{perms: granted}
	authH := NewAuthHandler(env.auth, fakeTokens{}, guard, CookieConfig{Secure: true})
	env.deps = Deps{
		Auth:     fakeAuthenticator{},
		AuthH:    authH,
		Sessions: NewSessionHandler(env.sessions, guard, env.audit, authH, 30),
		Audit:    NewAuditHandler(env.lister, guard),
		Health:   fakeHealth{rep: health.Report{Status: health.StatusOK, Checks: map[string]string{"database": "ok"}}},
	}
	env.handler = NewRouter(env.deps)
	return env
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

var errBoom = errors.New("boom")
