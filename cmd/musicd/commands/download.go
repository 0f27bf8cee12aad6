package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ytget/musicd"
	"github.com/ytget/musicd/types"
)

func downloadCmd() *cobra.Command {
	var flagOutput string

	cmd := &cobra.Command{
		Use:   "download <video-url-or-id>",
		Short: "Download the audio track to a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := musicd.ExtractVideoID(args[0])
			if err != nil {
				return err
			}

			svc := musicd.New(cfg)
			if err := svc.Init(); err != nil {
				return err
			}
			defer svc.Close()

			path, err := svc.Download(cmd.Context(), videoID, types.ParseQuality(cfg.Quality), flagOutput)
			if err != nil {
				return err
			}
			fmt.Printf("Saved: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output path (empty derives a filename from the track title)")
	return cmd
}
