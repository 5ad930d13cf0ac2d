package cli

import (
	"github.com/go-i2p/go-cbcservice/lib/config"
	"github.com/go-i2p/logger"
	"github.com/spf13/cobra"
)

var log = logger.GetGoI2PLogger()

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "go-cbcservice",
		Short:         "AES-256-CBC session service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitConfig(); err != nil {
				return err
			}
			return config.Validate(config.CurrentConfig())
		},
	}

	root.PersistentFlags().StringVar(&config.CfgFile, "config", "", "config file (default $HOME/.go-cbcservice/config.yaml)")

	root.AddCommand(serveCmd(), selftestCmd(), configCmd(), hashSecretCmd())
	return root
}
