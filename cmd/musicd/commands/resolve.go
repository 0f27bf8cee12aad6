package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ytget/musicd"
	"github.com/ytget/musicd/types"
)

func resolveCmd() *cobra.Command {
	var flagJSON bool

	cmd := &cobra.Command{
		Use:   "resolve <video-url-or-id>",
		Short: "Resolve a direct audio stream URL without downloading",
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

			info, err := svc.Resolve(cmd.Context(), videoID, types.ParseQuality(cfg.Quality))
			if err != nil {
				return err
			}

			if flagJSON {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			if info.Title != "" {
				fmt.Printf("Title:   %s\n", info.Title)
			}
			fmt.Printf("Mime:    %s\n", info.Mime)
			fmt.Printf("Bitrate: %d\n", info.Bitrate)
			fmt.Printf("Source:  %s\n", info.Source)
			fmt.Println(info.URL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagJSON, "json", false, "print the full stream descriptor as JSON")
	return cmd
}
