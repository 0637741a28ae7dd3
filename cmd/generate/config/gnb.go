package config

import (
	"github.com/Mmx233/RGNB/examples"
	"github.com/spf13/cobra"
)

// GnbCmd writes the station configuration template
var GnbCmd = &cobra.Command{
	Use:   "gnb",
	Short: "Generate gnb configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeTemplate("gnb", GetConfigFile(), examples.GnbConfig)
	},
}
