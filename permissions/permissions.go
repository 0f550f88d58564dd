// Package permissions grants and revokes the right of an EventBridge rule to
// invoke a Lambda function.
package permissions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/lambda"

	"github.com/ricardolpd/serverless/helpers"
)

const invokeAction = "lambda:InvokeFunction"

// API is the part of the Lambda API the manager uses.
type API interface {
	AddPermissionWithContext(aws.Context, *lambda.AddPermissionInput, ...request.Option) (*lambda.AddPermissionOutput, error)
	RemovePermissionWithContext(aws.Context, *lambda.RemovePermissionInput, ...request.Option) (*lambda.RemovePermissionOutput, error)
}

var _ API = (*lambda.Lambda)(nil)

type Manager struct {
	client    API
	principal string
}

func New(client API, principal string) *Manager {
	if principal == "" {
		principal = helpers.DefaultPrincipal
	}
	return &Manager{client: client, principal: principal}
}

// Grant allows the rule identified by sourceArn to invoke the function. A
// statement that already exists counts as granted.
func (m *Manager) Grant(ctx context.Context, functionName, ruleName, sourceArn string) error {
	statementID := helpers.StatementID(functionName, ruleName)
	_, err := m.client.AddPermissionWithContext(ctx, &lambda.AddPermissionInput{
		Action:       aws.String(invokeAction),
		FunctionName: aws.String(functionName),
		Principal:    aws.String(m.principal),
		StatementId:  aws.String(statementID),
		SourceArn:    aws.String(sourceArn),
	})
	if helpers.IsAlreadyExists(err) {
		slog.DebugContext(ctx, "permission already granted", "function", functionName, "statement_id", statementID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("add permission %s on %s: %w", statementID, functionName, err)
	}

	slog.InfoContext(ctx, "permission granted", "function", functionName, "statement_id", statementID, "source_arn", sourceArn)
	return nil
}

// Revoke removes the statement allowing the rule to invoke the function. A
// missing statement counts as revoked.
func (m *Manager) Revoke(ctx context.Context, functionName, ruleName string) error {
	statementID := helpers.StatementID(functionName, ruleName)
	_, err := m.client.RemovePermissionWithContext(ctx, &lambda.RemovePermissionInput{
		FunctionName: aws.String(functionName),
		StatementId:  aws.String(statementID),
	})
	if helpers.IsNotFound(err) {
		slog.DebugContext(ctx, "permission already revoked", "function", functionName, "statement_id", statementID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove permission %s on %s: %w", statementID, functionName, err)
	}

	slog.InfoContext(ctx, "permission revoked", "function", functionName, "statement_id", statementID)
	return nil
}
