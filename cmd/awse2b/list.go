package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/awse2b/awse2b/config"
	"github.com/awse2b/awse2b/e2b"
	"github.com/awse2b/awse2b/logging"
)

var listTeam string

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your e2b templates",
	RunE:  runTemplateList,
}

func init() {
	templateListCmd.Flags().StringVar(&listTeam, "team", "", "List templates belonging to this team")
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	// Listing never consumes the image source, so only the user tier is
	// resolved; a project file with broken build markers must not block it.
	cfg, err := config.ResolveAPI("")
	if err != nil {
		return err
	}

	team := listTeam
	if team == "" {
		team = cfg.TeamID
	}

	client := e2b.NewClient(cfg.Domain, cfg.AccessToken)
	templates, err := client.ListTemplates(cmd.Context(), team)
	if err != nil {
		return err
	}

	if len(templates) == 0 {
		logging.Info("No templates found")
		return nil
	}

	logging.Output(formatTemplates(templates))
	return nil
}

// formatTemplates renders the template list as aligned text. JSON output mode
// encodes the raw value instead, so structure is preserved there.
func formatTemplates(templates []e2b.Template) any {
	if logging.Default().OutputType == logging.JSONOutput {
		return templates
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-24s %6s %10s\n", "TEMPLATE ID", "ALIASES", "CPU", "MEMORY")
	for _, t := range templates {
		fmt.Fprintf(&b, "%-24s %-24s %6d %8dMB\n",
			t.TemplateID, strings.Join(t.Aliases, ","), t.CPUCount, t.MemoryMB)
	}
	return strings.TrimRight(b.String(), "\n")
}
