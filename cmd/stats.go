package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mergestat/timediff"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  `Display statistics about users, links and API tokens.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db := openDatabase(loadConfig())
		defer db.Close() //nolint: errcheck

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get database stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Database Statistics:")
		fmt.Fprintf(out, "Users: %s (%s active, %s admins)\n",
			humanize.Comma(stats.Users), humanize.Comma(stats.ActiveUsers), humanize.Comma(stats.Admins))
		fmt.Fprintf(out, "Links: %s (%s archived)\n", humanize.Comma(stats.Links), humanize.Comma(stats.ArchivedLinks))
		fmt.Fprintf(out, "Users with settings: %s\n", humanize.Comma(stats.Settings))
		fmt.Fprintf(out, "API tokens: %s\n", humanize.Comma(stats.Tokens))
		fmt.Fprintf(out, "Last signup: %s\n", since(stats.LastSignup))
		fmt.Fprintf(out, "Last link added: %s\n", since(stats.LastLink))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func since(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", timediff.TimeDiff(*t), t.Format(time.DateTime))
}
