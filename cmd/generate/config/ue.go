package config

import (
	"github.com/Mmx233/RGNB/examples"
	"github.com/spf13/cobra"
)

// UeCmd writes the device configuration template
var UeCmd = &cobra.Command{
	Use:   "ue",
	Short: "Generate ue configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeTemplate("ue", GetConfigFile(), examples.UeConfig)
	},
}
