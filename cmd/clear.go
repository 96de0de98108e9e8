package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/logo-cli/internal/cache"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty a session cache",
	Long:  "Removes the logos of one session (--session) or of every session (--all). The backup store is never touched.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		all, _ := cmd.Flags().GetBool("all")

		dir, err := clearTarget(cfg.Cache.SessionRoot, sessionID, all)
		if err != nil {
			return err
		}
		if err := cache.ClearDir(dir); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", dir)
		return nil
	},
}

func init() {
	clearCmd.Flags().String("session", "", "session id to clear")
	clearCmd.Flags().Bool("all", false, "clear every session under cache.session_root")
	rootCmd.AddCommand(clearCmd)
}

func clearTarget(root, sessionID string, all bool) (string, error) {
	switch {
	case all && sessionID != "":
		return "", eris.New("clear: --session and --all are mutually exclusive")
	case all:
		return root, nil
	case sessionID != "":
		return cache.SessionDir(root, sessionID), nil
	default:
		return "", eris.New("clear: one of --session or --all is required")
	}
}
