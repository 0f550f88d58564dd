package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/eventbridge"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ricardolpd/serverless/handler"
	"github.com/ricardolpd/serverless/helpers"
	"github.com/ricardolpd/serverless/permissions"
	"github.com/ricardolpd/serverless/reconcile"
	"github.com/ricardolpd/serverless/rules"
	"github.com/ricardolpd/serverless/targets"
)

// RootOptions holds the state shared by all commands.
type RootOptions struct {
	Viper  *viper.Viper
	Config helpers.Config

	// NewHandler builds the lifecycle handler from the loaded config.
	NewHandler func(cfg helpers.Config) (*handler.Handler, error)
}

// NewRootCommand creates the root command. Without a subcommand it serves
// lifecycle events from the Lambda runtime.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{
		Viper:      helpers.NewViper(),
		NewHandler: NewHandler,
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "eventbridge-resource",
		Short:         "CloudFormation custom resource binding EventBridge rules to Lambda functions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := helpers.LoadConfig(opts.Viper)
			if err != nil {
				return err
			}
			logger, err := helpers.NewLogger(cfg)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			opts.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("log-format", "", "log format (json|text)")
	flags.String("region", "", "AWS region, defaults to the environment")
	flags.String("assume-role-arn", "", "role to assume before calling AWS")
	flags.Bool("strict-input", false, "reject more than one of Input, InputPath and InputTransformer")
	for key, name := range map[string]string{
		"log_level":       "log-level",
		"log_format":      "log-format",
		"region":          "region",
		"assume_role_arn": "assume-role-arn",
		"strict_input":    "strict-input",
	} {
		_ = opts.Viper.BindPFlag(key, flags.Lookup(name))
	}

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))

	return cmd
}

// NewHandler wires the handler to the real AWS services.
func NewHandler(cfg helpers.Config) (*handler.Handler, error) {
	sess, err := helpers.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}

	eventBridgeClient := eventbridge.New(sess)
	reconciler := reconcile.New(
		permissions.New(lambda.New(sess), cfg.Principal),
		rules.New(eventBridgeClient),
		targets.New(eventBridgeClient),
	)

	stsClient := sts.New(sess)
	region := aws.StringValue(sess.Config.Region)
	environment := func(ctx context.Context) (helpers.Environment, error) {
		return helpers.ResolveEnvironment(ctx, stsClient, region)
	}

	return handler.New(reconciler, environment, cfg.StrictInput), nil
}

func readEvent(path string) (cfn.Event, error) {
	var event cfn.Event
	raw, err := os.ReadFile(path)
	if err != nil {
		return event, fmt.Errorf("reading event: %w", err)
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		return event, fmt.Errorf("decoding event %s: %w", path, err)
	}
	return event, nil
}
