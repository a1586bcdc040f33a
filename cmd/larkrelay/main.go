package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "larkrelay",
		Short: "Webhook-driven message relay for Lark and Feishu",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml")

	root.AddCommand(serveCmd())
	root.AddCommand(probeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
