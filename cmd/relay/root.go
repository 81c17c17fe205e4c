package main

import (
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/config"
	pkglog "github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "relay",
	Short:        "NexusCare real-time signaling and chat relay",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			l := pkglog.L()
			l.Error().Err(err).Msg("failed to load configuration")
			return err
		}

		pkglog.Init(pkglog.Config{
			Level:       cfg.Log.Level,
			Pretty:      cfg.Log.Pretty,
			ServiceName: "relay",
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, tailStreamCmd)
}
