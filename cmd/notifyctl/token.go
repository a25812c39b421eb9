package main

import (
	"fmt"
	"time"

	"github.com/cwrk-planet/notify-service/internal/security"

	"github.com/spf13/cobra"
)

// token mints development access tokens for hubs running with auth.mode=jwt.
func newTokenCmd() *cobra.Command {
	var (
		keyPath  string
		userID   string
		issuer   string
		audience string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an RS256 access token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := security.LoadRSAPrivateKeyFromPEM(keyPath)
			if err != nil {
				return fmt.Errorf("load private key: %w", err)
			}
			tok, err := security.NewSigner(key, issuer, audience, ttl).Sign(userID, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "PEM encoded RSA private key")
	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&issuer, "issuer", "auth-service", "token issuer")
	cmd.Flags().StringVar(&audience, "audience", "cwrk-planet", "token audience")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "token lifetime")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
