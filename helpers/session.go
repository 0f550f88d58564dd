package helpers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/arn"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sts"
)

var (
	roleSessionName = "EventBridgeCustomResource"
)

// NewSession creates the AWS session used for every remote call. When an
// assume-role ARN is configured the session's credentials come from STS.
func NewSession(cfg Config) (*session.Session, error) {
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}
	if cfg.AssumeRoleArn == "" {
		return sess, nil
	}

	slog.Info("assuming role", "role_arn", cfg.AssumeRoleArn)
	creds := stscreds.NewCredentials(sess, cfg.AssumeRoleArn, func(p *stscreds.AssumeRoleProvider) {
		p.RoleSessionName = roleSessionName
	})
	return session.NewSession(awsCfg.Copy().WithCredentials(creds))
}

// CallerIdentityAPI is the part of the STS API used to find the account.
type CallerIdentityAPI interface {
	GetCallerIdentityWithContext(aws.Context, *sts.GetCallerIdentityInput, ...request.Option) (*sts.GetCallerIdentityOutput, error)
}

// ResolveEnvironment finds the partition, region and account. Inside Lambda
// they come from the invoked function ARN; elsewhere from the caller identity
// and the given region.
func ResolveEnvironment(ctx context.Context, client CallerIdentityAPI, region string) (Environment, error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.InvokedFunctionArn != "" {
		return EnvironmentFromArn(lc.InvokedFunctionArn)
	}
	if client == nil {
		return Environment{}, fmt.Errorf("no lambda context and no sts client to resolve the account")
	}

	out, err := client.GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Environment{}, fmt.Errorf("get caller identity: %w", err)
	}
	env := Environment{
		Region:    region,
		AccountID: aws.StringValue(out.Account),
	}
	if a, err := arn.Parse(aws.StringValue(out.Arn)); err == nil {
		env.Partition = a.Partition
	}
	if env.Region == "" {
		return Environment{}, fmt.Errorf("no region configured")
	}
	return env, nil
}
