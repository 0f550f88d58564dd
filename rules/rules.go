// Package rules creates, updates and deletes EventBridge rules.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/eventbridge"

	"github.com/ricardolpd/serverless/helpers"
)

// API is the part of the EventBridge API the manager uses.
type API interface {
	PutRuleWithContext(aws.Context, *eventbridge.PutRuleInput, ...request.Option) (*eventbridge.PutRuleOutput, error)
	DeleteRuleWithContext(aws.Context, *eventbridge.DeleteRuleInput, ...request.Option) (*eventbridge.DeleteRuleOutput, error)
}

var _ API = (*eventbridge.EventBridge)(nil)

type Manager struct {
	client API
}

func New(client API) *Manager {
	return &Manager{client: client}
}

// Input builds the PutRule request for cfg. The rule is always ENABLED.
func Input(cfg helpers.EventBridgeConfig) (*eventbridge.PutRuleInput, error) {
	in := &eventbridge.PutRuleInput{
		Name:  aws.String(cfg.RuleName),
		State: aws.String(eventbridge.RuleStateEnabled),
	}
	if cfg.EventBus != "" {
		in.EventBusName = aws.String(cfg.EventBus)
	}
	if cfg.Schedule != "" {
		in.ScheduleExpression = aws.String(cfg.Schedule)
	}
	if cfg.Pattern != nil {
		pattern, err := json.Marshal(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("encoding event pattern of rule %s: %w", cfg.RuleName, err)
		}
		in.EventPattern = aws.String(string(pattern))
	}
	return in, nil
}

// Upsert creates the rule or overwrites every field of an existing one and
// returns its ARN.
func (m *Manager) Upsert(ctx context.Context, cfg helpers.EventBridgeConfig) (string, error) {
	in, err := Input(cfg)
	if err != nil {
		return "", err
	}

	out, err := m.client.PutRuleWithContext(ctx, in)
	if err != nil {
		return "", fmt.Errorf("put rule %s: %w", cfg.RuleName, err)
	}

	ruleArn := aws.StringValue(out.RuleArn)
	slog.InfoContext(ctx, "rule upserted", "rule", cfg.RuleName, "event_bus", cfg.EventBus, "rule_arn", ruleArn)
	return ruleArn, nil
}

// Delete removes the rule. A rule that does not exist counts as deleted.
func (m *Manager) Delete(ctx context.Context, ruleName, eventBus string) error {
	in := &eventbridge.DeleteRuleInput{
		Name: aws.String(ruleName),
	}
	if eventBus != "" {
		in.EventBusName = aws.String(eventBus)
	}

	_, err := m.client.DeleteRuleWithContext(ctx, in)
	if helpers.IsNotFound(err) {
		slog.DebugContext(ctx, "rule already deleted", "rule", ruleName, "event_bus", eventBus)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", ruleName, err)
	}

	slog.InfoContext(ctx, "rule deleted", "rule", ruleName, "event_bus", eventBus)
	return nil
}
