package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tailorjob/backend/internal/logger"
)

var errAborted = errors.New("aborted")

// confirm asks before destructive work unless --yes was given. Swapped in tests.
var confirm = func(label string) error {
	if viper.GetBool("yes") {
		return nil
	}
	p := promptui.Prompt{Label: label, IsConfirm: true}
	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return errAborted
		}
		return err
	}
	return nil
}

var grantTierCmd = &cobra.Command{
	Use:   "grant-tier",
	Short: "Give a user a subscription tier without PayPal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		user, _ := cmd.Flags().GetString("user")
		tier, _ := cmd.Flags().GetString("tier")
		if err := confirm(fmt.Sprintf("Grant tier %s to %s", tier, user)); err != nil {
			return err
		}
		return withAdmin(cmd, func(ctx context.Context, a *Admin) error {
			return a.GrantTier(ctx, user, tier)
		})
	},
}

var requeueCmd = &cobra.Command{
	Use:   "requeue-failed-cvs",
	Short: "Queue CVs stuck in uploaded or error for parsing again",
	RunE: func(cmd *cobra.Command, _ []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		limit, _ := cmd.Flags().GetInt("limit")
		return withAdmin(cmd, func(ctx context.Context, a *Admin) error {
			return a.RequeueFailedCVs(ctx, olderThan, limit)
		})
	},
}

var clearMatchCmd = &cobra.Command{
	Use:   "clear-match-cache",
	Short: "Delete stored match analyses so they are recomputed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		user, _ := cmd.Flags().GetString("user")
		label := "Delete match analyses for ALL users"
		if user != "" {
			label = "Delete match analyses for " + user
		}
		if err := confirm(label); err != nil {
			return err
		}
		return withAdmin(cmd, func(ctx context.Context, a *Admin) error {
			return a.ClearMatches(ctx, user)
		})
	},
}

var checkSubsCmd = &cobra.Command{
	Use:   "check-subscriptions",
	Short: "Run the PayPal payment, webhook and churn checks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withAdmin(cmd, func(ctx context.Context, a *Admin) error {
			return a.CheckSubscriptions(ctx)
		})
	},
}

func init() {
	grantTierCmd.Flags().String("user", "", "user id")
	grantTierCmd.Flags().String("tier", "", "free, basic, pro or enterprise")

	requeueCmd.Flags().Duration("older-than", 30*time.Minute, "only CVs untouched for this long")
	requeueCmd.Flags().Int("limit", 100, "maximum CVs to requeue")

	clearMatchCmd.Flags().String("user", "", "only this user's analyses")

	rootCmd.AddCommand(grantTierCmd, requeueCmd, clearMatchCmd, checkSubsCmd)
}

func withAdmin(cmd *cobra.Command, fn func(ctx context.Context, a *Admin) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	log := logger.New()
	if viper.GetBool("debug") {
		log.SetLevel(logger.ParseLevel("debug"))
	}

	a, err := newAdmin(ctx, log)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Out == nil {
		a.Out = cmd.OutOrStdout()
	}
	return fn(ctx, a)
}
