package engine

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.storefront.authz.allow"

//go:embed authz.rego
var defaultRegoPolicy string

// OPAAuthorizer evaluates the storefront authorization policy with OPA Rego. The query is
// prepared once; evaluation is safe for concurrent use.
type OPAAuthorizer struct {
	query rego.PreparedEvalQuery
}

// NewOPAAuthorizer compiles the built-in policy. A non-empty policy replaces it; it must define
// data.storefront.authz.allow.
func NewOPAAuthorizer(ctx context.Context, policy string) (*OPAAuthorizer, error) {
	if policy == "" {
		policy = defaultRegoPolicy
	}
	pq, err := rego.New(
		rego.Query(allowQuery),
		rego.Module("authz.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile authz policy: %w", err)
	}
	return &OPAAuthorizer{query: pq}, nil
}

// Allow evaluates the policy for input.
func (a *OPAAuthorizer) Allow(ctx context.Context, input Input) (bool, error) {
	rs, err := a.query.Eval(ctx, rego.EvalInput(buildInput(input)))
	if err != nil {
		return false, fmt.Errorf("eval authz policy: %w", err)
	}
	return rs.Allowed(), nil
}

// HealthCheck evaluates the prepared policy against a fixed input. Does not touch the database.
// Returns nil on success.
func (a *OPAAuthorizer) HealthCheck(ctx context.Context) error {
	rs, err := a.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"action":    "me",
		"principal": map[string]interface{}{"id": "healthcheck", "kind": "customer", "role": ""},
	}))
	if err != nil {
		return fmt.Errorf("eval authz policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

func buildInput(in Input) map[string]interface{} {
	return map[string]interface{}{
		"action": in.Action,
		"principal": map[string]interface{}{
			"id":   in.Principal.ID,
			"kind": string(in.Principal.Kind),
			"role": in.Principal.Role,
		},
	}
}
