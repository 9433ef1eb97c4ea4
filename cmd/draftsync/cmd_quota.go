package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/draftsync/internal/quota"
	"github.com/user/draftsync/internal/state"
)

var quotaLocal bool

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.Flags().BoolVar(&quotaLocal, "local", false, "show the cached value without contacting the server")
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show the current message quota",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		store := state.NewStore(cfg.DataDir)
		tracker := quota.New(store)
		tracker.SetDefaults(cfg.Quota.DefaultLimit, time.Duration(cfg.Quota.SnapshotMaxAgeMinutes)*time.Minute)

		if !quotaLocal {
			svc := buildClient(cfg)
			st, err := svc.RateLimit(context.Background())
			if err != nil {
				fmt.Printf("Server unreachable (%v), showing cached value.\n", err)
			} else {
				tracker.ApplyServerTruth(*st)
			}
		}

		allowed, st := tracker.Check()
		fmt.Printf("%d of %d messages remaining\n", st.Remaining, st.Limit)
		if !st.ResetAt.IsZero() {
			fmt.Printf("Resets at %s\n", st.ResetAt.Local().Format("Jan 2, 15:04"))
		}
		if !allowed {
			fmt.Println("Quota exhausted; new messages will be blocked until the reset.")
			if cfg.Quota.UpgradeLink != "" {
				fmt.Printf("Upgrade: %s\n", cfg.Quota.UpgradeLink)
			}
		}
		return nil
	},
}
