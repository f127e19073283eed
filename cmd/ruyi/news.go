package main

import (
	"github.com/spf13/cobra"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// News rendering (Markdown formatting, read-state tracking, pagination)
// is out of scope here; these stubs only exist so the subcommand surface
// spec.md §6 lists is complete.
var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Browse repo news items (not implemented)",
}

var newsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List news items (not implemented)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return ruyierr.New("cmd/news", ruyierr.NotInstallable, "", "news rendering is not implemented", nil)
	},
}

var newsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Read one news item (not implemented)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ruyierr.New("cmd/news", ruyierr.NotInstallable, args[0], "news rendering is not implemented", nil)
	},
}

func init() {
	newsCmd.AddCommand(newsListCmd)
	newsCmd.AddCommand(newsReadCmd)
}
