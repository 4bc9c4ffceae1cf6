package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/extrahours/auth"
)

var (
	tokenUser  string
	tokenEmail string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a development bearer token",
	Long: `Signs an HS256 token with JWT_SECRET for the given user. Intended for
local testing; production tokens come from the identity provider.

Example:
  curl -H "Authorization: Bearer $(./server token --user alice)" \
    localhost:8080/api/extra-hours/available`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUser == "" {
			return errors.New("--user is required")
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.RequireJWTSecret(); err != nil {
			return err
		}

		ttl := cfg.TokenTTL
		if cmd.Flags().Changed("ttl") {
			ttl = tokenTTL
		}
		v, err := auth.NewVerifier(cfg.JWTSecret, ttl)
		if err != nil {
			return err
		}

		raw, _, err := v.Issue(auth.Principal{UserID: tokenUser, Email: tokenEmail})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), raw)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (sub claim)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (overrides TOKEN_TTL)")
}
