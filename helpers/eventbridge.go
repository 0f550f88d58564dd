package helpers

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
)

// MaxRuleNameLength is the longest rule name EventBridge accepts.
const MaxRuleNameLength = 64

// ResourceProperties are the properties of a Custom::EventBridge resource.
type ResourceProperties struct {
	FunctionName      string            `mapstructure:"FunctionName"`
	EventBridgeConfig EventBridgeConfig `mapstructure:"EventBridgeConfig"`
}

// EventBridgeConfig describes the rule and how events are shaped before they
// reach the function. At most one of Input, InputPath and InputTransformer is
// expected to be set.
type EventBridgeConfig struct {
	RuleName         string            `mapstructure:"RuleName"`
	EventBus         string            `mapstructure:"EventBus"`
	Pattern          interface{}       `mapstructure:"Pattern"`
	Schedule         string            `mapstructure:"Schedule"`
	Input            interface{}       `mapstructure:"Input"`
	InputPath        string            `mapstructure:"InputPath"`
	InputTransformer *InputTransformer `mapstructure:"InputTransformer"`
}

type InputTransformer struct {
	InputPathsMap map[string]string `mapstructure:"InputPathsMap"`
	InputTemplate string            `mapstructure:"InputTemplate"`
}

// DecodeProperties decodes the raw ResourceProperties of a lifecycle event.
// Scalars are weakly typed because CloudFormation delivers them as strings.
func DecodeProperties(raw map[string]interface{}) (ResourceProperties, error) {
	var props ResourceProperties
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &props,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return props, err
	}
	if err := dec.Decode(raw); err != nil {
		return props, fmt.Errorf("decoding resource properties: %w", err)
	}
	return props, nil
}

// HasInput reports whether a static input is configured. Empty strings,
// false and zero count as absent.
func (c EventBridgeConfig) HasInput() bool {
	switch v := c.Input.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case int:
		return v != 0
	case int64:
		return v != 0
	}
	return true
}

// PayloadFields lists the payload-shaping fields that are set, in precedence order.
func (c EventBridgeConfig) PayloadFields() []string {
	var fields []string
	if c.HasInput() {
		fields = append(fields, "Input")
	}
	if c.InputPath != "" {
		fields = append(fields, "InputPath")
	}
	if c.InputTransformer != nil {
		fields = append(fields, "InputTransformer")
	}
	return fields
}

// ValidateIdentity checks the fields every lifecycle event needs to derive
// the permission, target and rule identifiers.
func (p ResourceProperties) ValidateIdentity() error {
	var result *multierror.Error
	if p.FunctionName == "" {
		result = multierror.Append(result, fmt.Errorf("FunctionName is required"))
	}
	if p.EventBridgeConfig.RuleName == "" {
		result = multierror.Append(result, fmt.Errorf("EventBridgeConfig.RuleName is required"))
	}
	if len(p.EventBridgeConfig.RuleName) > MaxRuleNameLength {
		result = multierror.Append(result, fmt.Errorf(
			"EventBridgeConfig.RuleName %q exceeds %d characters", p.EventBridgeConfig.RuleName, MaxRuleNameLength))
	}
	return result.ErrorOrNil()
}

// Validate checks the properties of a Create or Update. With strict set, more
// than one payload-shaping field is an error instead of being resolved by
// precedence.
func (p ResourceProperties) Validate(strict bool) error {
	var result *multierror.Error
	if err := p.ValidateIdentity(); err != nil {
		result = multierror.Append(result, err)
	}
	c := p.EventBridgeConfig
	if c.Pattern == nil && c.Schedule == "" {
		result = multierror.Append(result, fmt.Errorf("EventBridgeConfig needs a Pattern or a Schedule"))
	}
	if c.InputTransformer != nil && c.InputTransformer.InputTemplate == "" {
		result = multierror.Append(result, fmt.Errorf("EventBridgeConfig.InputTransformer.InputTemplate is required"))
	}
	if fields := c.PayloadFields(); strict && len(fields) > 1 {
		result = multierror.Append(result, fmt.Errorf("only one of Input, InputPath and InputTransformer may be set, got %v", fields))
	}
	return result.ErrorOrNil()
}
