package main

import "github.com/spf13/cobra"

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage e2b templates",
}

func init() {
	templateCmd.AddCommand(templateBuildCmd)
	templateCmd.AddCommand(templateListCmd)
}
