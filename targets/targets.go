// Package targets binds EventBridge rules to Lambda functions.
//
// PutTargets cannot switch a target between payload-shaping kinds in place,
// so an upsert always removes the target by its composite id first and then
// puts the new definition. Both calls are safe to repeat.
package targets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/eventbridge"

	"github.com/ricardolpd/serverless/helpers"
)

// API is the part of the EventBridge API the manager uses.
type API interface {
	PutTargetsWithContext(aws.Context, *eventbridge.PutTargetsInput, ...request.Option) (*eventbridge.PutTargetsOutput, error)
	RemoveTargetsWithContext(aws.Context, *eventbridge.RemoveTargetsInput, ...request.Option) (*eventbridge.RemoveTargetsOutput, error)
}

var _ API = (*eventbridge.EventBridge)(nil)

// FailedEntry is one target PutTargets or RemoveTargets could not apply.
type FailedEntry struct {
	TargetID string
	Code     string
	Message  string
}

// EntryError reports the failed entries of an otherwise successful call.
// Count comes from FailedEntryCount and may exceed len(Entries).
type EntryError struct {
	Operation string
	Rule      string
	Count     int64
	Entries   []FailedEntry
}

func (e *EntryError) Error() string {
	if len(e.Entries) == 0 {
		return fmt.Sprintf("%s on rule %s failed for %d target(s)", e.Operation, e.Rule, e.Count)
	}
	parts := make([]string, len(e.Entries))
	for i, entry := range e.Entries {
		parts[i] = fmt.Sprintf("%s: %s %s", entry.TargetID, entry.Code, entry.Message)
	}
	return fmt.Sprintf("%s on rule %s failed for %d target(s): %s",
		e.Operation, e.Rule, e.Count, strings.Join(parts, "; "))
}

type Manager struct {
	client API
}

func New(client API) *Manager {
	return &Manager{client: client}
}

// Target builds the target pointing the rule at functionArn. When more than
// one payload-shaping field is set, Input wins over InputPath, which wins
// over InputTransformer.
func Target(functionName, functionArn string, cfg helpers.EventBridgeConfig) (*eventbridge.Target, error) {
	target := &eventbridge.Target{
		Id:  aws.String(helpers.TargetID(functionName, cfg.RuleName)),
		Arn: aws.String(functionArn),
	}

	switch {
	case cfg.HasInput():
		input, err := json.Marshal(cfg.Input)
		if err != nil {
			return nil, fmt.Errorf("encoding input of rule %s: %w", cfg.RuleName, err)
		}
		target.Input = aws.String(string(input))
	case cfg.InputPath != "":
		target.InputPath = aws.String(cfg.InputPath)
	case cfg.InputTransformer != nil:
		target.InputTransformer = &eventbridge.InputTransformer{
			InputPathsMap: aws.StringMap(cfg.InputTransformer.InputPathsMap),
			InputTemplate: aws.String(cfg.InputTransformer.InputTemplate),
		}
	}
	return target, nil
}

// Upsert replaces the target binding the rule to the function.
func (m *Manager) Upsert(ctx context.Context, functionName, functionArn string, cfg helpers.EventBridgeConfig) error {
	target, err := Target(functionName, functionArn, cfg)
	if err != nil {
		return err
	}
	if fields := cfg.PayloadFields(); len(fields) > 1 {
		slog.WarnContext(ctx, "more than one payload field set, using the first",
			"rule", cfg.RuleName, "fields", fields, "used", fields[0])
	}

	if err := m.Remove(ctx, functionName, cfg.RuleName, cfg.EventBus); err != nil {
		return err
	}

	in := &eventbridge.PutTargetsInput{
		Rule:    aws.String(cfg.RuleName),
		Targets: []*eventbridge.Target{target},
	}
	if cfg.EventBus != "" {
		in.EventBusName = aws.String(cfg.EventBus)
	}

	out, err := m.client.PutTargetsWithContext(ctx, in)
	if err != nil {
		return fmt.Errorf("put targets on rule %s: %w", cfg.RuleName, err)
	}
	if n := aws.Int64Value(out.FailedEntryCount); n > 0 {
		return &EntryError{Operation: "PutTargets", Rule: cfg.RuleName, Count: n, Entries: putFailures(out)}
	}

	slog.InfoContext(ctx, "target bound", "rule", cfg.RuleName, "target_id", aws.StringValue(target.Id), "arn", functionArn)
	return nil
}

// Remove unbinds the function's target from the rule. A missing rule or
// target counts as removed.
func (m *Manager) Remove(ctx context.Context, functionName, ruleName, eventBus string) error {
	targetID := helpers.TargetID(functionName, ruleName)
	in := &eventbridge.RemoveTargetsInput{
		Rule: aws.String(ruleName),
		Ids:  aws.StringSlice([]string{targetID}),
	}
	if eventBus != "" {
		in.EventBusName = aws.String(eventBus)
	}

	out, err := m.client.RemoveTargetsWithContext(ctx, in)
	if helpers.IsNotFound(err) {
		slog.DebugContext(ctx, "target already removed", "rule", ruleName, "target_id", targetID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove targets from rule %s: %w", ruleName, err)
	}
	if n := aws.Int64Value(out.FailedEntryCount); n > 0 {
		failed, onlyMissing := removeFailures(out)
		if !onlyMissing {
			return &EntryError{Operation: "RemoveTargets", Rule: ruleName, Count: n, Entries: failed}
		}
	}

	slog.InfoContext(ctx, "target removed", "rule", ruleName, "target_id", targetID)
	return nil
}

func putFailures(out *eventbridge.PutTargetsOutput) []FailedEntry {
	var failed []FailedEntry
	for _, e := range out.FailedEntries {
		failed = append(failed, FailedEntry{
			TargetID: aws.StringValue(e.TargetId),
			Code:     aws.StringValue(e.ErrorCode),
			Message:  aws.StringValue(e.ErrorMessage),
		})
	}
	return failed
}

// removeFailures drops entries for targets that are already gone. onlyMissing
// is true when every reported entry was one of those.
func removeFailures(out *eventbridge.RemoveTargetsOutput) (failed []FailedEntry, onlyMissing bool) {
	for _, e := range out.FailedEntries {
		if aws.StringValue(e.ErrorCode) == eventbridge.ErrCodeResourceNotFoundException {
			continue
		}
		failed = append(failed, FailedEntry{
			TargetID: aws.StringValue(e.TargetId),
			Code:     aws.StringValue(e.ErrorCode),
			Message:  aws.StringValue(e.ErrorMessage),
		})
	}
	return failed, len(out.FailedEntries) > 0 && len(failed) == 0
}
