package rbac

import (
	"net/http"
)

// Decision is the outcome of one pipeline stage.
type Decision struct {
	Allow   bool
	Status  int
	Err     error
	Message string
}

// Continue lets the next stage (or the business handler) run.
func Continue() Decision { return Decision{Allow: true} }

// DenyDecision stops the pipeline with the given HTTP status and error.
func DenyDecision(status int, err error, message string) Decision {
	return Decision{Status: status, Err: err, Message: message}
}

// Stage is one pure step of the authorization pipeline.
type Stage func(req *Request) Decision

// Pipeline evaluates stages in declared order and stops at the first
// denial. Stages never see a request a previous stage denied.
type Pipeline struct {
	stages []Stage
}

// NewPipeline builds a pipeline from ordered stages.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Evaluate runs the stages against one request.
func (p *Pipeline) Evaluate(req *Request) Decision {
	for _, stage := range p.stages {
		if decision := stage(req); !decision.Allow {
			return decision
		}
	}
	return Continue()
}

// AuthenticationStage denies requests that carry no principal.
func AuthenticationStage() Stage {
	return func(req *Request) Decision {
		if !req.Authenticated || req.Context.UserID == 0 {
			return DenyDecision(http.StatusUnauthorized, ErrAuthenticationRequired, "Non authentifié")
		}
		return Continue()
	}
}

// PermissionStage denies requests whose context does not satisfy the
// descriptor.
func PermissionStage(evaluator *PermissionEvaluator, descriptor Descriptor) Stage {
	return func(req *Request) Decision {
		if descriptor == nil {
			return Continue()
		}
		if err := evaluator.Evaluate(req.Context, descriptor); err != nil {
			return DenyDecision(http.StatusForbidden, err, "Permissions insuffisantes")
		}
		return Continue()
	}
}

// TenantStage denies cross-tenant access outside the two-factor gate. The
// target tenant is read from the request via resolve; an empty result
// means the operation stays inside the caller's tenant.
func TenantStage(guard TenantGuard, resolve func(*Request) string, allowCrossTenant bool) Stage {
	return func(req *Request) Decision {
		target := ""
		if resolve != nil {
			target = resolve(req)
		}
		if err := guard.Check(req.Context, target, allowCrossTenant); err != nil {
			return DenyDecision(http.StatusForbidden, err, "Accès limité à votre établissement")
		}
		return Continue()
	}
}

// ConditionStage denies requests failing any declared condition, in order.
func ConditionStage(conditions []Condition) Stage {
	return func(req *Request) Decision {
		if err := EvaluateConditions(conditions, req); err != nil {
			message := "Conditions d'accès non remplies"
			if cerr, ok := err.(*ConditionError); ok && cerr.Condition.Message != "" {
				message = cerr.Condition.Message
			}
			return DenyDecision(http.StatusForbidden, err, message)
		}
		return Continue()
	}
}
