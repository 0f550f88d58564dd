// Package fakes holds an in-memory stand-in for the Lambda, EventBridge and
// STS calls the resource handler makes. It records every call in order and
// keeps enough state to answer like the real services do for repeated and
// out-of-order calls.
package fakes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/eventbridge"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/sts"
)

// Operation names recorded in Call.Op.
const (
	OpAddPermission     = "AddPermission"
	OpRemovePermission  = "RemovePermission"
	OpPutRule           = "PutRule"
	OpDeleteRule        = "DeleteRule"
	OpPutTargets        = "PutTargets"
	OpRemoveTargets     = "RemoveTargets"
	OpGetCallerIdentity = "GetCallerIdentity"
)

type Call struct {
	Op    string
	Input interface{}
}

type Permission struct {
	FunctionName string
	Principal    string
	SourceArn    string
}

// AWS is safe for concurrent use.
type AWS struct {
	Account string

	mu          sync.Mutex
	calls       []Call
	errs        map[string]error
	permissions map[string]Permission
	rules       map[string]*eventbridge.PutRuleInput
	targets     map[string]map[string]*eventbridge.Target
}

func New() *AWS {
	return &AWS{
		Account:     "123456789012",
		errs:        map[string]error{},
		permissions: map[string]Permission{},
		rules:       map[string]*eventbridge.PutRuleInput{},
		targets:     map[string]map[string]*eventbridge.Target{},
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (f *AWS) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

func (f *AWS) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Ops returns the recorded operation names in call order.
func (f *AWS) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, len(f.calls))
	for i, c := range f.calls {
		ops[i] = c.Op
	}
	return ops
}

func (f *AWS) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Permissions returns the granted permissions keyed by statement id.
func (f *AWS) Permissions() map[string]Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]Permission, len(f.permissions))
	for k, v := range f.permissions {
		out[k] = v
	}
	return out
}

func (f *AWS) Rule(eventBus, name string) (*eventbridge.PutRuleInput, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleKey(eventBus, name)]
	return r, ok
}

// Targets returns the targets bound to a rule, sorted by id.
func (f *AWS) Targets(eventBus, rule string) []*eventbridge.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*eventbridge.Target
	for _, t := range f.targets[ruleKey(eventBus, rule)] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return aws.StringValue(out[i].Id) < aws.StringValue(out[j].Id)
	})
	return out
}

func (f *AWS) record(op string, input interface{}) error {
	f.calls = append(f.calls, Call{Op: op, Input: input})
	return f.errs[op]
}

func ruleKey(eventBus, name string) string {
	if eventBus == "" {
		eventBus = "default"
	}
	return eventBus + "/" + name
}

func notFound(format string, args ...interface{}) error {
	return awserr.New(eventbridge.ErrCodeResourceNotFoundException, fmt.Sprintf(format, args...), nil)
}

func (f *AWS) AddPermissionWithContext(_ aws.Context, in *lambda.AddPermissionInput, _ ...request.Option) (*lambda.AddPermissionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpAddPermission, in); err != nil {
		return nil, err
	}
	id := aws.StringValue(in.StatementId)
	if _, ok := f.permissions[id]; ok {
		return nil, awserr.New(lambda.ErrCodeResourceConflictException,
			fmt.Sprintf("The statement id (%s) provided already exists.", id), nil)
	}
	f.permissions[id] = Permission{
		FunctionName: aws.StringValue(in.FunctionName),
		Principal:    aws.StringValue(in.Principal),
		SourceArn:    aws.StringValue(in.SourceArn),
	}
	return &lambda.AddPermissionOutput{}, nil
}

func (f *AWS) RemovePermissionWithContext(_ aws.Context, in *lambda.RemovePermissionInput, _ ...request.Option) (*lambda.RemovePermissionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpRemovePermission, in); err != nil {
		return nil, err
	}
	id := aws.StringValue(in.StatementId)
	if _, ok := f.permissions[id]; !ok {
		return nil, awserr.New(lambda.ErrCodeResourceNotFoundException, "The policy does not exist.", nil)
	}
	delete(f.permissions, id)
	return &lambda.RemovePermissionOutput{}, nil
}

func (f *AWS) PutRuleWithContext(_ aws.Context, in *eventbridge.PutRuleInput, _ ...request.Option) (*eventbridge.PutRuleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpPutRule, in); err != nil {
		return nil, err
	}
	key := ruleKey(aws.StringValue(in.EventBusName), aws.StringValue(in.Name))
	f.rules[key] = in
	return &eventbridge.PutRuleOutput{
		RuleArn: aws.String(fmt.Sprintf("arn:aws:events:us-east-1:%s:rule/%s", f.Account, key)),
	}, nil
}

func (f *AWS) DeleteRuleWithContext(_ aws.Context, in *eventbridge.DeleteRuleInput, _ ...request.Option) (*eventbridge.DeleteRuleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpDeleteRule, in); err != nil {
		return nil, err
	}
	key := ruleKey(aws.StringValue(in.EventBusName), aws.StringValue(in.Name))
	if _, ok := f.rules[key]; !ok {
		return nil, notFound("Rule %s does not exist.", aws.StringValue(in.Name))
	}
	if len(f.targets[key]) > 0 {
		return nil, awserr.New("ValidationException", "Rule can't be deleted since it has targets.", nil)
	}
	delete(f.rules, key)
	delete(f.targets, key)
	return &eventbridge.DeleteRuleOutput{}, nil
}

func (f *AWS) PutTargetsWithContext(_ aws.Context, in *eventbridge.PutTargetsInput, _ ...request.Option) (*eventbridge.PutTargetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpPutTargets, in); err != nil {
		return nil, err
	}
	key := ruleKey(aws.StringValue(in.EventBusName), aws.StringValue(in.Rule))
	if _, ok := f.rules[key]; !ok {
		return nil, notFound("Rule %s does not exist.", aws.StringValue(in.Rule))
	}
	if f.targets[key] == nil {
		f.targets[key] = map[string]*eventbridge.Target{}
	}
	for _, t := range in.Targets {
		f.targets[key][aws.StringValue(t.Id)] = t
	}
	return &eventbridge.PutTargetsOutput{FailedEntryCount: aws.Int64(0)}, nil
}

func (f *AWS) RemoveTargetsWithContext(_ aws.Context, in *eventbridge.RemoveTargetsInput, _ ...request.Option) (*eventbridge.RemoveTargetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpRemoveTargets, in); err != nil {
		return nil, err
	}
	key := ruleKey(aws.StringValue(in.EventBusName), aws.StringValue(in.Rule))
	if _, ok := f.rules[key]; !ok {
		return nil, notFound("Rule %s does not exist.", aws.StringValue(in.Rule))
	}
	for _, id := range in.Ids {
		delete(f.targets[key], aws.StringValue(id))
	}
	return &eventbridge.RemoveTargetsOutput{FailedEntryCount: aws.Int64(0)}, nil
}

func (f *AWS) GetCallerIdentityWithContext(_ aws.Context, in *sts.GetCallerIdentityInput, _ ...request.Option) (*sts.GetCallerIdentityOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpGetCallerIdentity, in); err != nil {
		return nil, err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.Account),
		Arn:     aws.String(fmt.Sprintf("arn:aws:iam::%s:user/deployer", f.Account)),
	}, nil
}
