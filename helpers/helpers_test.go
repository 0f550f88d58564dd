package helpers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetID_Deterministic(t *testing.T) {
	assert.Equal(t, "orderProcessor-orderProcessor-rule-1", TargetID("orderProcessor", "orderProcessor-rule-1"))
	assert.Equal(t, TargetID("fn", "rule"), TargetID("fn", "rule"))
}

func TestStatementID(t *testing.T) {
	assert.Equal(t, "orderProcessor-orderprocessor-rule-1", StatementID("orderProcessor", "orderProcessor-rule-1"))
	assert.Equal(t, "fn-myrulev1", StatementID("fn", "My.Rule:v1*"))
}

func TestStatementID_LongIdsAreHashed(t *testing.T) {
	functionName := strings.Repeat("a", 60)
	ruleName := strings.Repeat("B", 40) + ".rule"

	id := StatementID(functionName, ruleName)

	assert.Equal(t, "1065eeb258c6031c0219c7ed5f345a34", id)
	assert.Equal(t, id, StatementID(functionName, ruleName))
}

func TestEnvironmentFromArn(t *testing.T) {
	env, err := EnvironmentFromArn("arn:aws-cn:lambda:cn-north-1:123456789012:function:custom-resource")
	require.NoError(t, err)

	assert.Equal(t, Environment{Partition: "aws-cn", Region: "cn-north-1", AccountID: "123456789012"}, env)

	_, err = EnvironmentFromArn("not-an-arn")
	assert.Error(t, err)
}

func TestEnvironment_LambdaArn(t *testing.T) {
	env := Environment{Region: "us-east-1", AccountID: "123456789012"}
	assert.Equal(t, "arn:aws:lambda:us-east-1:123456789012:function:orderProcessor", env.LambdaArn("orderProcessor"))
}

func TestEnvironment_RuleArn(t *testing.T) {
	env := Environment{Partition: "aws", Region: "eu-west-1", AccountID: "123456789012"}

	tests := []struct {
		name     string
		eventBus string
		want     string
	}{
		{"default bus", "", "arn:aws:events:eu-west-1:123456789012:rule/orders-rule-1"},
		{"explicit default", "default", "arn:aws:events:eu-west-1:123456789012:rule/orders-rule-1"},
		{"custom bus", "orders", "arn:aws:events:eu-west-1:123456789012:rule/orders/orders-rule-1"},
		{"bus arn", "arn:aws:events:eu-west-1:123456789012:event-bus/orders", "arn:aws:events:eu-west-1:123456789012:rule/orders/orders-rule-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, env.RuleArn(tt.eventBus, "orders-rule-1"))
		})
	}
}

func TestIsNotFoundAndAlreadyExists(t *testing.T) {
	notFound := awserr.New("ResourceNotFoundException", "gone", nil)
	conflict := awserr.New("ResourceConflictException", "The statement id (fn-rule) provided already exists.", nil)
	inProgress := awserr.New("ResourceConflictException",
		"The operation cannot be performed at this time. An update is in progress for resource: fn", nil)
	busExists := awserr.New("ResourceAlreadyExistsException", "Event bus orders already exists.", nil)
	throttled := awserr.New("ThrottlingException", "slow down", nil)

	assert.True(t, IsNotFound(notFound))
	assert.True(t, IsNotFound(errors.Join(errors.New("context"), notFound)))
	assert.False(t, IsNotFound(throttled))
	assert.False(t, IsNotFound(nil))

	assert.True(t, IsAlreadyExists(conflict))
	assert.True(t, IsAlreadyExists(busExists))
	assert.False(t, IsAlreadyExists(inProgress))
	assert.False(t, IsAlreadyExists(notFound))
	assert.False(t, IsAlreadyExists(errors.New("plain")))
}

type identityStub struct {
	calls int
}

func (s *identityStub) GetCallerIdentityWithContext(aws.Context, *sts.GetCallerIdentityInput, ...request.Option) (*sts.GetCallerIdentityOutput, error) {
	s.calls++
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("210987654321"),
		Arn:     aws.String("arn:aws-us-gov:iam::210987654321:user/ci"),
	}, nil
}

func TestResolveEnvironment_FromLambdaContext(t *testing.T) {
	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{
		InvokedFunctionArn: "arn:aws:lambda:us-west-2:123456789012:function:handler",
	})
	stub := &identityStub{}

	env, err := ResolveEnvironment(ctx, stub, "ignored")
	require.NoError(t, err)

	assert.Equal(t, Environment{Partition: "aws", Region: "us-west-2", AccountID: "123456789012"}, env)
	assert.Zero(t, stub.calls)
}

func TestResolveEnvironment_FromCallerIdentity(t *testing.T) {
	stub := &identityStub{}

	env, err := ResolveEnvironment(context.Background(), stub, "us-gov-west-1")
	require.NoError(t, err)

	assert.Equal(t, Environment{Partition: "aws-us-gov", Region: "us-gov-west-1", AccountID: "210987654321"}, env)
	assert.Equal(t, 1, stub.calls)
}

func TestResolveEnvironment_NeedsRegion(t *testing.T) {
	_, err := ResolveEnvironment(context.Background(), &identityStub{}, "")
	assert.Error(t, err)

	_, err = ResolveEnvironment(context.Background(), nil, "us-east-1")
	assert.Error(t, err)
}
