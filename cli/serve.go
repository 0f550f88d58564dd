package cli

import (
	"log/slog"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve lifecycle events from the Lambda runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts)
		},
	}
}

func serve(opts *RootOptions) error {
	h, err := opts.NewHandler(opts.Config)
	if err != nil {
		return err
	}
	slog.Info("starting lambda handler", "strict_input", opts.Config.StrictInput)
	awslambda.Start(h.Lambda())
	return nil
}
