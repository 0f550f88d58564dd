package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ricardolpd/serverless/helpers"
)

// Operation is a lifecycle operation on the resource.
type Operation int

const (
	Create Operation = iota + 1
	Update
	Delete
)

func (o Operation) String() string {
	switch o {
	case Create:
		return "Create"
	case Update:
		return "Update"
	case Delete:
		return "Delete"
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// Action is one remote step of a plan.
type Action int

const (
	GrantPermission Action = iota + 1
	UpsertRule
	UpsertTarget
	RevokePermission
	RemoveTarget
	DeleteRule
)

func (a Action) String() string {
	switch a {
	case GrantPermission:
		return "grant-permission"
	case UpsertRule:
		return "upsert-rule"
	case UpsertTarget:
		return "upsert-target"
	case RevokePermission:
		return "revoke-permission"
	case RemoveTarget:
		return "remove-target"
	case DeleteRule:
		return "delete-rule"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Actions returns the ordered steps of op. Each step must finish before the
// next one starts.
func Actions(op Operation) ([]Action, error) {
	switch op {
	case Create:
		return []Action{GrantPermission, UpsertRule, UpsertTarget}, nil
	case Update:
		return []Action{UpsertRule, UpsertTarget}, nil
	case Delete:
		return []Action{RevokePermission, RemoveTarget, DeleteRule}, nil
	}
	return nil, fmt.Errorf("no plan for %s", op)
}

// Resource is the desired end state, derived only from the event properties
// and the environment.
type Resource struct {
	FunctionName string
	FunctionArn  string
	RuleArn      string
	TargetID     string
	StatementID  string
	Config       helpers.EventBridgeConfig
}

func Derive(props helpers.ResourceProperties, env helpers.Environment) Resource {
	cfg := props.EventBridgeConfig
	return Resource{
		FunctionName: props.FunctionName,
		FunctionArn:  env.LambdaArn(props.FunctionName),
		RuleArn:      env.RuleArn(cfg.EventBus, cfg.RuleName),
		TargetID:     helpers.TargetID(props.FunctionName, cfg.RuleName),
		StatementID:  helpers.StatementID(props.FunctionName, cfg.RuleName),
		Config:       cfg,
	}
}

type Plan struct {
	Operation Operation
	Resource  Resource
	Actions   []Action
}

func NewPlan(op Operation, res Resource) (Plan, error) {
	actions, err := Actions(op)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Operation: op, Resource: res, Actions: actions}, nil
}

// Describe renders one line per step.
func (p Plan) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", p.Operation, p.Resource.TargetID)
	for i, a := range p.Actions {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, a, p.Resource.describe(a))
	}
	return b.String()
}

func (r Resource) describe(a Action) string {
	bus := r.Config.EventBus
	if bus == "" {
		bus = "default"
	}
	switch a {
	case GrantPermission:
		return fmt.Sprintf("function=%s statement=%s source=%s", r.FunctionName, r.StatementID, r.RuleArn)
	case RevokePermission:
		return fmt.Sprintf("function=%s statement=%s", r.FunctionName, r.StatementID)
	case UpsertRule:
		s := fmt.Sprintf("rule=%s bus=%s state=ENABLED", r.Config.RuleName, bus)
		if r.Config.Schedule != "" {
			s += fmt.Sprintf(" schedule=%q", r.Config.Schedule)
		}
		if r.Config.Pattern != nil {
			pattern, _ := json.Marshal(r.Config.Pattern)
			s += fmt.Sprintf(" pattern=%s", pattern)
		}
		return s
	case UpsertTarget:
		s := fmt.Sprintf("rule=%s bus=%s target=%s arn=%s", r.Config.RuleName, bus, r.TargetID, r.FunctionArn)
		if fields := r.Config.PayloadFields(); len(fields) > 0 {
			s += " payload=" + fields[0]
		}
		return s
	case RemoveTarget:
		return fmt.Sprintf("rule=%s bus=%s target=%s", r.Config.RuleName, bus, r.TargetID)
	case DeleteRule:
		return fmt.Sprintf("rule=%s bus=%s", r.Config.RuleName, bus)
	}
	return ""
}
