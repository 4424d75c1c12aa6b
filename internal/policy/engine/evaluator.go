package engine

import (
	"context"

	sessiondomain "github.com/ZewK3/Home-sub002/internal/session/domain"
)

// Input is the document a policy decision is made on.
type Input struct {
	Action    string
	Principal sessiondomain.Principal
}

// Authorizer decides whether a principal may perform an action.
type Authorizer interface {
	// Allow reports whether input.Principal may perform input.Action. An error means the decision
	// could not be made; callers must treat it as a denial.
	Allow(ctx context.Context, input Input) (bool, error)
}
