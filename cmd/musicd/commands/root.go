// Package commands implements the musicd CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ytget/musicd/internal/config"
	"github.com/ytget/musicd/internal/logger"
)

var (
	cfg config.Config

	flagCookies  string
	flagProxy    string
	flagQuality  string
	flagLogLevel string
)

func Execute() error {
	root := &cobra.Command{
		Use:           "musicd",
		Short:         "YouTube music streaming server and resolver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.FromEnv()
			if err != nil {
				return err
			}
			if flagCookies != "" {
				cfg.CookiesFile = flagCookies
			}
			if flagProxy != "" {
				cfg.ProxyURL = flagProxy
			}
			if flagQuality != "" {
				cfg.Quality = flagQuality
			}
			if flagLogLevel != "" {
				cfg.LogLevel = flagLogLevel
			}
			configureLogger()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagCookies, "cookies", "", "path to Netscape cookies.txt (default youtube_cookies.txt next to the binary)")
	root.PersistentFlags().StringVar(&flagProxy, "proxy", "", "proxy URL for upstream traffic (http/https/socks)")
	root.PersistentFlags().StringVar(&flagQuality, "quality", "", "default audio quality: low, medium or high")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: TRACE, DEBUG, INFO, WARN, ERROR")

	root.AddCommand(serveCmd(), resolveCmd(), downloadCmd(), authCmd())
	err := root.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func configureLogger() {
	if cfg.LogFile != "" {
		fc := logger.DefaultLogConfig()
		fc.Level = cfg.LogLevel
		fc.Format = cfg.LogFormat
		fc.Output = "file:" + cfg.LogFile
		fc.Timestamp = true
		l, err := logger.CreateLoggerWithRotation(fc)
		if err == nil {
			logger.SetGlobalLogger(l)
			return
		}
		fmt.Fprintf(os.Stderr, "log file %s unusable (%v), logging to stdout\n", cfg.LogFile, err)
	}

	lc := logger.DefaultConfig()
	if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
		lc.Level = level
	}
	if format, ok := logger.ParseFormat(cfg.LogFormat); ok {
		lc.Format = format
	}
	lc.Timestamp = true
	logger.SetGlobalLogger(logger.New(lc))
}
