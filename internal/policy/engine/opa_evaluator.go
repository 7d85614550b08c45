package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"github.com/hugo617/healthcare-admin-sub001/internal/policy/domain"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
)

const scopeQuery = "data.healthadmin.resource_scope.allow"

// DefaultScopePolicy allows every resource. Tenants restrict it with their own modules.
const DefaultScopePolicy = `package healthadmin.resource_scope

default allow := true
`

// AdminOnlyCleanupPolicy keeps session cleanup on the admin console and allows every
// other resource. The seed command installs it for the dev tenant.
const AdminOnlyCleanupPolicy = `package healthadmin.resource_scope

default allow := false

allow if {
	input.permission != "session:cleanup"
}

allow if {
	input.client_type == "admin"
}
`

// PolicySource lists the tenant policies that replace the default module.
type PolicySource interface {
	ListEnabledByTenant(ctx context.Context, scope tenant.Scope) ([]*domain.Policy, error)
}

// OPAEvaluator evaluates resource-scope policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo    PolicySource
	defaultPolicy string
}

// NewOPAEvaluator returns an OPA-based scope evaluator. policyRepo may be nil, in which case
// only the default policy is used.
func NewOPAEvaluator(policyRepo PolicySource) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo, defaultPolicy: DefaultScopePolicy}
}

// LoadDefaultPolicy replaces the built-in default module with the Rego file at path.
// The module is compiled immediately, so a broken file fails at startup.
func (e *OPAEvaluator) LoadDefaultPolicy(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scope policy: %w", err)
	}
	if _, err := ast.CompileModules(map[string]string{"default.rego": string(b)}); err != nil {
		return fmt.Errorf("compile scope policy %s: %w", path, err)
	}
	e.defaultPolicy = string(b)
	return nil
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.evaluate(ctx, []string{e.defaultPolicy}, buildInput(ScopeInput{}))
	return err
}

// AllowResource evaluates the tenant's policies, or the default policy when the tenant has
// none. An undefined result denies.
func (e *OPAEvaluator) AllowResource(ctx context.Context, in ScopeInput) (bool, error) {
	policies := e.tenantPolicies(ctx)
	if len(policies) == 0 {
		policies = []string{e.defaultPolicy}
	}
	return e.evaluate(ctx, policies, buildInput(in))
}

func (e *OPAEvaluator) tenantPolicies(ctx context.Context) []string {
	if e.policyRepo == nil {
		return nil
	}
	scope, err := tenant.Require(ctx)
	if err != nil {
		return nil
	}
	list, err := e.policyRepo.ListEnabledByTenant(ctx, scope)
	if err != nil {
		zap.L().Warn("policy: failed to load tenant policies", zap.Int64("tenant_id", scope.ID()), zap.Error(err))
		return nil
	}
	var out []string
	for _, p := range list {
		if p.Enabled && p.Rules != "" {
			out = append(out, p.Rules)
		}
	}
	return out
}

func buildInput(in ScopeInput) map[string]interface{} {
	return map[string]interface{}{
		"user": map[string]interface{}{
			"id":             in.UserID,
			"role_id":        in.RoleID,
			"is_super_admin": in.IsSuperAdmin,
		},
		"tenant_id":   in.TenantID,
		"permission":  in.Permission,
		"resource_id": in.ResourceID,
		"client_type": in.ClientType,
	}
}

func (e *OPAEvaluator) evaluate(ctx context.Context, policies []string, input map[string]interface{}) (bool, error) {
	modules := make(map[string]string, len(policies))
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return false, fmt.Errorf("compile policies: %w", err)
	}
	rs, err := rego.New(
		rego.Query(scopeQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	).Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval scope policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allow, _ := rs[0].Expressions[0].Value.(bool)
	return allow, nil
}
