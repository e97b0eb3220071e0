package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-setoran-session/internal/app"
	"github.com/spf13/cobra"
)

func (c *cli) newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive in the foreground and log out when it expires",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(commandContext(cmd))
			defer cancel()

			a, err := c.loadApp(app.WithExpiredFunc(func(_ context.Context, reason string) {
				fmt.Fprintf(c.out, "%s  session ended: %s\n", time.Now().Format(time.Kitchen), reason)
				cancel()
			}))
			if err != nil {
				return err
			}
			displayAppname(c.out, a.Config.GetAppName())
			fmt.Fprintf(c.out, "Session %s; checking every %s, inactivity limit %s (Ctrl+C to stop)\n",
				a.Session.State(), a.Config.GetActivityCheckInterval(), a.Config.GetInactivityThreshold())

			a.Start(ctx)
			defer a.Close()
			waitForStopSignal(ctx)
			return nil
		},
	}
}
