package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ricardolpd/serverless/handler"
	"github.com/ricardolpd/serverless/helpers"
	"github.com/ricardolpd/serverless/reconcile"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	EventPath string
	Partition string
	Region    string
	AccountID string
}

// NewPlanCommand prints the remote calls a lifecycle event would make,
// without calling AWS.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the ordered remote calls for a lifecycle event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.EventPath, "event", "", "path to the CloudFormation custom-resource event (JSON)")
	cmd.Flags().StringVar(&opts.Partition, "partition", "aws", "AWS partition")
	cmd.Flags().StringVar(&opts.AccountID, "account", "", "AWS account id")
	cmd.Flags().StringVar(&opts.Region, "target-region", "", "AWS region the function lives in (defaults to --region)")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runPlan(cmd *cobra.Command, opts *PlanOptions) error {
	event, err := readEvent(opts.EventPath)
	if err != nil {
		return err
	}

	op, err := handler.Lifecycle(event.RequestType)
	if err != nil {
		return err
	}
	props, err := helpers.DecodeProperties(event.ResourceProperties)
	if err != nil {
		return err
	}
	if op == reconcile.Delete {
		err = props.ValidateIdentity()
	} else {
		err = props.Validate(opts.Config.StrictInput)
	}
	if err != nil {
		return fmt.Errorf("invalid resource properties: %w", err)
	}

	region := opts.Region
	if region == "" {
		region = opts.Config.Region
	}
	if region == "" {
		return fmt.Errorf("no region: set --target-region or --region")
	}
	env := helpers.Environment{
		Partition: opts.Partition,
		Region:    region,
		AccountID: opts.AccountID,
	}

	plan, err := reconcile.NewPlan(op, reconcile.Derive(props, env))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), plan.Describe())
	return err
}
