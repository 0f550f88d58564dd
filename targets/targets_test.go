package targets

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/eventbridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricardolpd/serverless/fakes"
	"github.com/ricardolpd/serverless/helpers"
)

const functionArn = "arn:aws:lambda:us-east-1:123456789012:function:orderProcessor"

func seedRule(t *testing.T, fake *fakes.AWS, cfg helpers.EventBridgeConfig) {
	t.Helper()
	_, err := fake.PutRuleWithContext(context.Background(), &eventbridge.PutRuleInput{
		Name:         aws.String(cfg.RuleName),
		EventBusName: nilIfEmpty(cfg.EventBus),
	})
	require.NoError(t, err)
	fake.Reset()
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func TestTarget_Precedence(t *testing.T) {
	transformer := &helpers.InputTransformer{
		InputPathsMap: map[string]string{"id": "$.detail.id"},
		InputTemplate: `{"id": <id>}`,
	}

	tests := []struct {
		name string
		cfg  helpers.EventBridgeConfig
		want func(t *testing.T, target *eventbridge.Target)
	}{
		{
			name: "none",
			cfg:  helpers.EventBridgeConfig{RuleName: "r"},
			want: func(t *testing.T, target *eventbridge.Target) {
				assert.Nil(t, target.Input)
				assert.Nil(t, target.InputPath)
				assert.Nil(t, target.InputTransformer)
			},
		},
		{
			name: "input wins over everything",
			cfg: helpers.EventBridgeConfig{
				RuleName:         "r",
				Input:            map[string]interface{}{"key": "value"},
				InputPath:        "$.detail",
				InputTransformer: transformer,
			},
			want: func(t *testing.T, target *eventbridge.Target) {
				assert.JSONEq(t, `{"key":"value"}`, aws.StringValue(target.Input))
				assert.Nil(t, target.InputPath)
				assert.Nil(t, target.InputTransformer)
			},
		},
		{
			name: "input path wins over transformer",
			cfg: helpers.EventBridgeConfig{
				RuleName:         "r",
				InputPath:        "$.detail",
				InputTransformer: transformer,
			},
			want: func(t *testing.T, target *eventbridge.Target) {
				assert.Nil(t, target.Input)
				assert.Equal(t, "$.detail", aws.StringValue(target.InputPath))
				assert.Nil(t, target.InputTransformer)
			},
		},
		{
			name: "transformer",
			cfg:  helpers.EventBridgeConfig{RuleName: "r", InputTransformer: transformer},
			want: func(t *testing.T, target *eventbridge.Target) {
				require.NotNil(t, target.InputTransformer)
				assert.Equal(t, `{"id": <id>}`, aws.StringValue(target.InputTransformer.InputTemplate))
				assert.Equal(t, "$.detail.id", aws.StringValue(target.InputTransformer.InputPathsMap["id"]))
			},
		},
		{
			name: "string input is encoded as json",
			cfg:  helpers.EventBridgeConfig{RuleName: "r", Input: "hello"},
			want: func(t *testing.T, target *eventbridge.Target) {
				assert.Equal(t, `"hello"`, aws.StringValue(target.Input))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := Target("orderProcessor", functionArn, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, "orderProcessor-r", aws.StringValue(target.Id))
			assert.Equal(t, functionArn, aws.StringValue(target.Arn))
			tt.want(t, target)
		})
	}
}

func TestUpsert_RemovesBeforePutting(t *testing.T) {
	fake := fakes.New()
	cfg := helpers.EventBridgeConfig{RuleName: "orderProcessor-rule-1", Schedule: "rate(5 minutes)"}
	seedRule(t, fake, cfg)

	require.NoError(t, New(fake).Upsert(context.Background(), "orderProcessor", functionArn, cfg))

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, fakes.OpRemoveTargets, calls[0].Op)
	assert.Equal(t, fakes.OpPutTargets, calls[1].Op)

	removed := calls[0].Input.(*eventbridge.RemoveTargetsInput)
	put := calls[1].Input.(*eventbridge.PutTargetsInput)
	assert.Equal(t, []string{"orderProcessor-orderProcessor-rule-1"}, aws.StringValueSlice(removed.Ids))
	require.Len(t, put.Targets, 1)
	assert.Equal(t, aws.StringValueSlice(removed.Ids)[0], aws.StringValue(put.Targets[0].Id))
	assert.Equal(t, "orderProcessor-rule-1", aws.StringValue(put.Rule))
}

func TestUpsert_ReplacesStalePayload(t *testing.T) {
	fake := fakes.New()
	ctx := context.Background()
	m := New(fake)
	cfg := helpers.EventBridgeConfig{RuleName: "r", EventBus: "orders", Input: map[string]interface{}{"a": 1}}
	seedRule(t, fake, cfg)

	require.NoError(t, m.Upsert(ctx, "fn", functionArn, cfg))
	cfg.Input = nil
	cfg.InputPath = "$.detail"
	require.NoError(t, m.Upsert(ctx, "fn", functionArn, cfg))

	bound := fake.Targets("orders", "r")
	require.Len(t, bound, 1)
	assert.Nil(t, bound[0].Input)
	assert.Equal(t, "$.detail", aws.StringValue(bound[0].InputPath))
}

func TestUpsert_RuleMissingFailsOnPut(t *testing.T) {
	fake := fakes.New()

	err := New(fake).Upsert(context.Background(), "fn", functionArn, helpers.EventBridgeConfig{RuleName: "missing"})

	require.Error(t, err)
	assert.True(t, helpers.IsNotFound(err))
	assert.Equal(t, []string{fakes.OpRemoveTargets, fakes.OpPutTargets}, fake.Ops())
}

func TestUpsert_RemoveFailureStopsPut(t *testing.T) {
	fake := fakes.New()
	throttled := awserr.New("ThrottlingException", "slow down", nil)
	fake.FailOn(fakes.OpRemoveTargets, throttled)

	err := New(fake).Upsert(context.Background(), "fn", functionArn, helpers.EventBridgeConfig{RuleName: "r"})

	assert.ErrorIs(t, err, throttled)
	assert.Equal(t, []string{fakes.OpRemoveTargets}, fake.Ops())
}

func TestRemove_NotFoundIsSuccess(t *testing.T) {
	fake := fakes.New()

	assert.NoError(t, New(fake).Remove(context.Background(), "fn", "missing", ""))
}

// partialClient reports failed entries. A non-zero count overrides the
// number of entries.
type partialClient struct {
	count          int64
	putFailures    []*eventbridge.PutTargetsResultEntry
	removeFailures []*eventbridge.RemoveTargetsResultEntry
}

func (c *partialClient) failedCount(entries int) *int64 {
	if c.count != 0 {
		return aws.Int64(c.count)
	}
	return aws.Int64(int64(entries))
}

func (c *partialClient) PutTargetsWithContext(aws.Context, *eventbridge.PutTargetsInput, ...request.Option) (*eventbridge.PutTargetsOutput, error) {
	return &eventbridge.PutTargetsOutput{
		FailedEntryCount: c.failedCount(len(c.putFailures)),
		FailedEntries:    c.putFailures,
	}, nil
}

func (c *partialClient) RemoveTargetsWithContext(aws.Context, *eventbridge.RemoveTargetsInput, ...request.Option) (*eventbridge.RemoveTargetsOutput, error) {
	return &eventbridge.RemoveTargetsOutput{
		FailedEntryCount: c.failedCount(len(c.removeFailures)),
		FailedEntries:    c.removeFailures,
	}, nil
}

func TestUpsert_FailedEntries(t *testing.T) {
	client := &partialClient{
		putFailures: []*eventbridge.PutTargetsResultEntry{{
			TargetId:     aws.String("fn-r"),
			ErrorCode:    aws.String("ConcurrentModificationException"),
			ErrorMessage: aws.String("try again"),
		}},
	}

	err := New(client).Upsert(context.Background(), "fn", functionArn, helpers.EventBridgeConfig{RuleName: "r"})

	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, "PutTargets", entryErr.Operation)
	assert.Equal(t, []FailedEntry{{TargetID: "fn-r", Code: "ConcurrentModificationException", Message: "try again"}}, entryErr.Entries)
	assert.Contains(t, err.Error(), "fn-r: ConcurrentModificationException try again")
}

func TestRemove_FailedCountWithoutEntries(t *testing.T) {
	client := &partialClient{count: 1}

	var entryErr *EntryError
	require.ErrorAs(t, New(client).Remove(context.Background(), "fn", "r", ""), &entryErr)
	assert.Equal(t, "RemoveTargets", entryErr.Operation)
	assert.Equal(t, int64(1), entryErr.Count)
	assert.Empty(t, entryErr.Entries)

	err := &EntryError{Operation: "PutTargets", Rule: "r", Count: 2}
	assert.Equal(t, "PutTargets on rule r failed for 2 target(s)", err.Error())
}

func TestUpsert_PutFailedCountWithoutEntries(t *testing.T) {
	client := &putOnlyFailures{}

	err := New(client).Upsert(context.Background(), "fn", functionArn, helpers.EventBridgeConfig{RuleName: "r"})

	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, "PutTargets", entryErr.Operation)
	assert.Equal(t, int64(1), entryErr.Count)
	assert.Empty(t, entryErr.Entries)
}

// putOnlyFailures removes cleanly but reports one failed put without detail.
type putOnlyFailures struct{}

func (putOnlyFailures) PutTargetsWithContext(aws.Context, *eventbridge.PutTargetsInput, ...request.Option) (*eventbridge.PutTargetsOutput, error) {
	return &eventbridge.PutTargetsOutput{FailedEntryCount: aws.Int64(1)}, nil
}

func (putOnlyFailures) RemoveTargetsWithContext(aws.Context, *eventbridge.RemoveTargetsInput, ...request.Option) (*eventbridge.RemoveTargetsOutput, error) {
	return &eventbridge.RemoveTargetsOutput{FailedEntryCount: aws.Int64(0)}, nil
}

func TestRemove_FailedEntries(t *testing.T) {
	client := &partialClient{
		removeFailures: []*eventbridge.RemoveTargetsResultEntry{
			{TargetId: aws.String("fn-r"), ErrorCode: aws.String(eventbridge.ErrCodeResourceNotFoundException)},
		},
	}
	assert.NoError(t, New(client).Remove(context.Background(), "fn", "r", ""))

	client.removeFailures = append(client.removeFailures, &eventbridge.RemoveTargetsResultEntry{
		TargetId: aws.String("fn-r"), ErrorCode: aws.String("InternalException"),
	})
	var entryErr *EntryError
	require.ErrorAs(t, New(client).Remove(context.Background(), "fn", "r", ""), &entryErr)
	assert.Len(t, entryErr.Entries, 1)
}
