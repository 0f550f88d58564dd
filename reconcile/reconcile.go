// Package reconcile drives the permission, rule and target managers through
// the Create, Update and Delete lifecycles of one resource.
//
// Steps run strictly in order and the first failure stops the run. Nothing is
// rolled back: every step is idempotent, so the orchestrator recovers by
// sending the same lifecycle event again.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ricardolpd/serverless/helpers"
)

type PermissionManager interface {
	Grant(ctx context.Context, functionName, ruleName, sourceArn string) error
	Revoke(ctx context.Context, functionName, ruleName string) error
}

type RuleManager interface {
	Upsert(ctx context.Context, cfg helpers.EventBridgeConfig) (string, error)
	Delete(ctx context.Context, ruleName, eventBus string) error
}

type TargetManager interface {
	Upsert(ctx context.Context, functionName, functionArn string, cfg helpers.EventBridgeConfig) error
	Remove(ctx context.Context, functionName, ruleName, eventBus string) error
}

// StepError wraps the failure of one plan step.
type StepError struct {
	Operation Operation
	Step      int
	Action    Action
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step %d (%s): %v", e.Operation, e.Step, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Result carries what the steps learned about the remote resources.
type Result struct {
	RuleArn string
}

type Reconciler struct {
	permissions PermissionManager
	rules       RuleManager
	targets     TargetManager
}

func New(permissions PermissionManager, rules RuleManager, targets TargetManager) *Reconciler {
	return &Reconciler{
		permissions: permissions,
		rules:       rules,
		targets:     targets,
	}
}

func (r *Reconciler) execute(ctx context.Context, op Operation, res Resource) (Result, error) {
	plan, err := NewPlan(op, res)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for i, action := range plan.Actions {
		slog.DebugContext(ctx, "running step", "operation", op.String(), "step", i+1, "action", action.String(), "target_id", res.TargetID)
		if err := r.run(ctx, action, res, &result); err != nil {
			return result, &StepError{Operation: op, Step: i + 1, Action: action, Err: err}
		}
	}
	return result, nil
}

func (r *Reconciler) run(ctx context.Context, action Action, res Resource, result *Result) error {
	cfg := res.Config
	switch action {
	case GrantPermission:
		return r.permissions.Grant(ctx, res.FunctionName, cfg.RuleName, res.RuleArn)
	case UpsertRule:
		ruleArn, err := r.rules.Upsert(ctx, cfg)
		if err != nil {
			return err
		}
		result.RuleArn = ruleArn
		return nil
	case UpsertTarget:
		return r.targets.Upsert(ctx, res.FunctionName, res.FunctionArn, cfg)
	case RevokePermission:
		return r.permissions.Revoke(ctx, res.FunctionName, cfg.RuleName)
	case RemoveTarget:
		return r.targets.Remove(ctx, res.FunctionName, cfg.RuleName, cfg.EventBus)
	case DeleteRule:
		return r.rules.Delete(ctx, cfg.RuleName, cfg.EventBus)
	}
	return fmt.Errorf("unknown action %s", action)
}
