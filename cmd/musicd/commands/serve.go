package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ytget/musicd"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP streaming API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc := musicd.New(cfg)
			if err := svc.Init(); err != nil {
				return err
			}
			defer svc.Close()
			return svc.Serve(ctx)
		},
	}
}
