package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	EventPath string
}

// invokeOutput is what invoke prints on success.
type invokeOutput struct {
	PhysicalResourceID string                 `json:"PhysicalResourceId"`
	Data               map[string]interface{} `json:"Data,omitempty"`
}

// NewInvokeCommand runs one lifecycle event from a file against AWS. The
// event's response URL is not called.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Apply a lifecycle event from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.EventPath, "event", "", "path to the CloudFormation custom-resource event (JSON)")
	_ = cmd.MarkFlagRequired("event")

	return cmd
}

func runInvoke(cmd *cobra.Command, opts *InvokeOptions) error {
	event, err := readEvent(opts.EventPath)
	if err != nil {
		return err
	}

	h, err := opts.NewHandler(opts.Config)
	if err != nil {
		return err
	}

	physicalID, data, err := h.Handle(cmd.Context(), event)
	if err != nil {
		return fmt.Errorf("%s %s: %w", event.RequestType, event.LogicalResourceID, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(invokeOutput{PhysicalResourceID: physicalID, Data: data})
}
