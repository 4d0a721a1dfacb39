package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"confy/internal/log"
	"confy/internal/relay"
)

func main() {
	var configFile string

	root := &cobra.Command{
		Use:           "relayd",
		Short:         "Blind relay daemon for confy",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := relay.DefaultConfig()
			if configFile != "" {
				var err error
				if cfg, err = relay.LoadConfig(configFile); err != nil {
					return err
				}
			}

			logBackend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
			if err != nil {
				return err
			}
			l := logBackend.GetLogger("relayd")

			srv := relay.NewServer(logBackend)
			l.Noticef("relay listening on %s", cfg.Address)
			return http.ListenAndServe(cfg.Address, srv.Handler())
		},
	}
	root.Flags().StringVarP(&configFile, "config", "f", "", "config file (TOML)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "relayd:", err)
		os.Exit(1)
	}
}
