// Package handler receives the CloudFormation custom-resource events for
// Custom::EventBridge resources and routes them to the reconciler.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/cfn"

	"github.com/ricardolpd/serverless/helpers"
	"github.com/ricardolpd/serverless/reconcile"
)

// ErrUnrecognizedLifecycleEvent is returned for request types other than
// Create, Update and Delete. No remote call is made in that case.
var ErrUnrecognizedLifecycleEvent = errors.New("unrecognized lifecycle event")

// Lifecycle maps a request type to its reconcile operation.
func Lifecycle(requestType cfn.RequestType) (reconcile.Operation, error) {
	switch requestType {
	case cfn.RequestCreate:
		return reconcile.Create, nil
	case cfn.RequestUpdate:
		return reconcile.Update, nil
	case cfn.RequestDelete:
		return reconcile.Delete, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnrecognizedLifecycleEvent, requestType)
}

type Reconciler interface {
	Create(ctx context.Context, res reconcile.Resource) (reconcile.Result, error)
	Update(ctx context.Context, res reconcile.Resource) (reconcile.Result, error)
	Delete(ctx context.Context, res reconcile.Resource) error
}

// EnvironmentFunc resolves the partition, region and account for a call.
type EnvironmentFunc func(ctx context.Context) (helpers.Environment, error)

type Handler struct {
	reconciler  Reconciler
	environment EnvironmentFunc
	strictInput bool
}

// New returns a handler. With strictInput set, properties carrying more than
// one of Input, InputPath and InputTransformer are rejected.
func New(reconciler Reconciler, environment EnvironmentFunc, strictInput bool) *Handler {
	return &Handler{
		reconciler:  reconciler,
		environment: environment,
		strictInput: strictInput,
	}
}

// Lambda wraps the handler in the custom-resource protocol: the outcome is
// uploaded to the event's response URL.
func (h *Handler) Lambda() cfn.CustomResourceLambdaFunction {
	return cfn.LambdaWrap(h.Handle)
}

// Handle processes one lifecycle event and returns the physical resource id
// and the response data. It has the signature of cfn.CustomResourceFunction.
func (h *Handler) Handle(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	op, err := Lifecycle(event.RequestType)
	if err != nil {
		slog.ErrorContext(ctx, "rejecting event", "request_type", event.RequestType, "logical_id", event.LogicalResourceID, "err", err)
		return "", nil, err
	}

	props, err := helpers.DecodeProperties(event.ResourceProperties)
	if err != nil {
		// Create decodes before any remote call, so undecodable properties
		// never produced anything to delete.
		if op == reconcile.Delete {
			slog.WarnContext(ctx, "nothing to delete for undecodable resource properties",
				"logical_id", event.LogicalResourceID, "physical_id", event.PhysicalResourceID, "err", err)
			return event.PhysicalResourceID, nil, nil
		}
		return "", nil, err
	}

	logger := slog.With(
		"request_type", string(event.RequestType),
		"logical_id", event.LogicalResourceID,
		"function", props.FunctionName,
		"rule", props.EventBridgeConfig.RuleName,
	)
	logger.InfoContext(ctx, "handling lifecycle event")

	var (
		physicalID string
		data       map[string]interface{}
	)
	switch op {
	case reconcile.Create, reconcile.Update:
		physicalID, data, err = h.apply(ctx, op, props)
	case reconcile.Delete:
		physicalID, err = h.delete(ctx, event.PhysicalResourceID, props)
	default:
		err = fmt.Errorf("%w: %s", ErrUnrecognizedLifecycleEvent, op)
	}
	if err != nil {
		logger.ErrorContext(ctx, "lifecycle event failed", "err", err)
		return physicalID, nil, err
	}

	logger.InfoContext(ctx, "lifecycle event completed", "physical_id", physicalID)
	return physicalID, data, nil
}

func (h *Handler) apply(ctx context.Context, op reconcile.Operation, props helpers.ResourceProperties) (string, map[string]interface{}, error) {
	if err := props.Validate(h.strictInput); err != nil {
		return "", nil, fmt.Errorf("invalid resource properties: %w", err)
	}

	env, err := h.environment(ctx)
	if err != nil {
		return "", nil, err
	}
	res := reconcile.Derive(props, env)

	var result reconcile.Result
	if op == reconcile.Create {
		result, err = h.reconciler.Create(ctx, res)
	} else {
		result, err = h.reconciler.Update(ctx, res)
	}
	// The target id is returned even on failure so a rollback Delete can
	// clean up whatever the partial run left behind.
	if err != nil {
		return res.TargetID, nil, err
	}

	return res.TargetID, map[string]interface{}{
		"RuleArn":  result.RuleArn,
		"TargetId": res.TargetID,
	}, nil
}

func (h *Handler) delete(ctx context.Context, physicalID string, props helpers.ResourceProperties) (string, error) {
	// Create validates before any remote call, so a resource whose
	// properties never named a function and rule was never created.
	if err := props.ValidateIdentity(); err != nil {
		slog.WarnContext(ctx, "nothing to delete for invalid resource properties", "physical_id", physicalID, "err", err)
		return physicalID, nil
	}

	env, err := h.environment(ctx)
	if err != nil {
		return physicalID, err
	}
	return physicalID, h.reconciler.Delete(ctx, reconcile.Derive(props, env))
}
