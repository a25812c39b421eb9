package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newEmitCmd() *cobra.Command {
	var (
		addr   string
		userID string
		group  string
		event  string
		data   string
	)
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Push an event to a user or group through the hub HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (userID == "") == (group == "") {
				return fmt.Errorf("exactly one of --user or --group is required")
			}
			var raw json.RawMessage
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				raw = json.RawMessage(data)
			}
			body, err := json.Marshal(struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data,omitempty"`
			}{event, raw})
			if err != nil {
				return err
			}

			path := "/notify/groups/" + url.PathEscape(group)
			if userID != "" {
				path = "/notify/users/" + url.PathEscape(userID)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				strings.TrimRight(addr, "/")+path, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if key := os.Getenv("NOTIFY_EMIT_KEY"); key != "" {
				req.Header.Set("Authorization", "Bearer "+key)
			}

			resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			respBody, _ := io.ReadAll(resp.Body)
			if resp.StatusCode >= 300 {
				return fmt.Errorf("emit: %s: %s", resp.Status, bytes.TrimSpace(respBody))
			}
			_, err = cmd.OutOrStdout().Write(respBody)
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8090", "hub HTTP address")
	cmd.Flags().StringVar(&userID, "user", "", "target user id")
	cmd.Flags().StringVar(&group, "group", "", "target group")
	cmd.Flags().StringVar(&event, "event", "", "event name")
	cmd.Flags().StringVar(&data, "data", "", "JSON payload")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}
