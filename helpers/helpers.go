package helpers

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws/arn"
)

// maxStatementIDLength bounds Lambda permission statement ids.
const maxStatementIDLength = 100

// Environment is the partition, region and account the handler runs in.
type Environment struct {
	Partition string
	Region    string
	AccountID string
}

// EnvironmentFromArn derives the environment from the invoked function ARN.
func EnvironmentFromArn(functionArn string) (Environment, error) {
	a, err := arn.Parse(functionArn)
	if err != nil {
		return Environment{}, fmt.Errorf("parsing invoked function arn: %w", err)
	}
	return Environment{
		Partition: a.Partition,
		Region:    a.Region,
		AccountID: a.AccountID,
	}, nil
}

func (e Environment) partition() string {
	if e.Partition == "" {
		return "aws"
	}
	return e.Partition
}

// LambdaArn returns the invocation address of the named function.
func (e Environment) LambdaArn(functionName string) string {
	return arn.ARN{
		Partition: e.partition(),
		Service:   "lambda",
		Region:    e.Region,
		AccountID: e.AccountID,
		Resource:  "function:" + functionName,
	}.String()
}

// RuleArn returns the ARN of a rule. Rules on a custom bus carry the bus name
// in their resource path.
func (e Environment) RuleArn(eventBus, ruleName string) string {
	resource := "rule/" + ruleName
	if name := EventBusName(eventBus); name != "" && name != "default" {
		resource = "rule/" + name + "/" + ruleName
	}
	return arn.ARN{
		Partition: e.partition(),
		Service:   "events",
		Region:    e.Region,
		AccountID: e.AccountID,
		Resource:  resource,
	}.String()
}

// EventBusName accepts a bus name or an event-bus ARN and returns the name.
func EventBusName(eventBus string) string {
	if !arn.IsARN(eventBus) {
		return eventBus
	}
	a, err := arn.Parse(eventBus)
	if err != nil {
		return eventBus
	}
	return strings.TrimPrefix(a.Resource, "event-bus/")
}

// TargetID is the composite identifier of the target binding a rule to a
// function. Both the bind and the unbind address the target by it.
func TargetID(functionName, ruleName string) string {
	return functionName + "-" + ruleName
}

// StatementID is the identifier of the permission statement allowing the
// rule to invoke the function. Ids that would be too long are hashed.
func StatementID(functionName, ruleName string) string {
	normalized := strings.NewReplacer(".", "", ":", "", "*", "").Replace(strings.ToLower(ruleName))
	id := functionName + "-" + normalized
	if len(id) < maxStatementIDLength {
		return id
	}
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}
