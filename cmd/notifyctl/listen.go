package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cwrk-planet/notify-service/pkg/notifyclient"

	"github.com/spf13/cobra"
)

func newListenCmd() *cobra.Command {
	var (
		userID string
		token  string
		events []string
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect to $NOTIFY_URL, register a user id and print events",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := notifyclient.NewFromEnv(notifyclient.WithAccessToken(token))
			if !c.Enabled() {
				return fmt.Errorf("%s is not set", notifyclient.EnvURL)
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			printer := func(event string) notifyclient.Handler {
				return func(data json.RawMessage) {
					fmt.Fprintf(out, "%s\t%s\n", event, data)
				}
			}
			for _, e := range events {
				c.On(e, printer(e))
			}

			failed := make(chan struct{}, 1)
			c.On(notifyclient.EventReconnectFailed, func(json.RawMessage) {
				select {
				case failed <- struct{}{}:
				default:
				}
			})

			if err := c.Register(userID); err != nil {
				return err
			}
			if err := c.Connect(cmd.Context()); err != nil {
				fmt.Fprintln(os.Stderr, "initial connect failed, retrying:", err)
			}

			select {
			case <-cmd.Context().Done():
				return nil
			case <-failed:
				return fmt.Errorf("gave up after %d reconnection attempts", notifyclient.ReconnectAttempts)
			}
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to register")
	cmd.Flags().StringVar(&token, "token", "", "access token for hubs running in jwt mode")
	cmd.Flags().StringSliceVar(&events, "event", []string{
		"likeCount-updated", "post-liked", "registered", "error",
		notifyclient.EventConnect, notifyclient.EventDisconnect,
	}, "events to print")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
