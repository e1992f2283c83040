package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"convoy/internal/notifications"
	"convoy/internal/preflight"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			check := preflight.CheckNotificationsFromConfig(cfg)
			if !check.Passed {
				return fmt.Errorf("notifications misconfigured: %s", check.Detail)
			}
			if cfg.Notifications.NtfyTopic == "" {
				fmt.Fprintln(out, "Notifications disabled; set notifications.ntfy_topic to enable them")
				return nil
			}
			service := notifications.NewService(cfg)
			if err := service.Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(out, "Test notification sent to %s\n", check.Detail)
			return nil
		},
	}
}
