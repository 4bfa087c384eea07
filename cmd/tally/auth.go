package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tally/internal/auth"
	"github.com/mschirtzinger/tally/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "account",
	Short:   "Store a session for syncing",
	Long: `Store the session used to attribute and authorize remote writes.

The access token is also accepted from TALLY_ACCESS_TOKEN.`,
	Run: func(cmd *cobra.Command, args []string) {
		user, _ := cmd.Flags().GetString("user")
		token, _ := cmd.Flags().GetString("token")
		ttl, _ := cmd.Flags().GetDuration("expires-in")

		if user == "" {
			fatal("--user is required")
		}
		if token == "" {
			token = os.Getenv("TALLY_ACCESS_TOKEN")
		}

		s := auth.Session{UserID: user, AccessToken: token}
		if ttl > 0 {
			s.ExpiresAt = time.Now().Add(ttl).UTC()
		}

		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			fatal("failed to create data directory: %v", err)
		}
		if err := auth.NewFileProvider(cfg.SessionPath()).Login(s); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Signed in as %s\n", ui.RenderPass("✓"), user)

		a := mustOpen(nil)
		defer a.Close()
		if !a.store.Migrated() && len(a.store.LoadState().Logs) > 0 {
			fmt.Printf("   This device has local history; run 'tally migrate' to upload it\n")
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "account",
	Short:   "Sign out and clear local data",
	Long: `Deliver any queued writes, then remove the session and every local
document from this device. Refuses to discard undelivered writes unless
--force is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		a := mustOpen(nil)
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if a.queue.HasPending() && a.facade.Eligible(ctx) {
			if _, err := a.facade.Flush(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: flush failed: %v\n", err)
			}
		}
		if n := a.queue.Len(); n > 0 && !force {
			fatal("%s not synced yet; run 'tally sync' or pass --force to discard", ui.Plural(n, "write"))
		}

		if err := a.facade.SignOut(); err != nil {
			fatal("%v", err)
		}
		if err := a.provider.Logout(); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Signed out and cleared local data\n", ui.RenderPass("✓"))
	},
}

func init() {
	loginCmd.Flags().String("user", "", "account user id")
	loginCmd.Flags().String("token", "", "access token")
	loginCmd.Flags().Duration("expires-in", 0, "session lifetime (0 never expires)")
	logoutCmd.Flags().Bool("force", false, "discard undelivered writes")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
