package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/compensation/internal/auth"
	"github.com/odyssey-erp/compensation/internal/shared"
)

func newTokenCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API access tokens",
	}

	var (
		userID   int64
		username string
		role     string
		ttl      time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user-id must be positive")
			}
			if ttl <= 0 {
				ttl = rt.Config.JWTTTL
			}
			tokens, err := auth.NewTokenService(rt.Config.JWTSecret, rt.Config.JWTIssuer, ttl)
			if err != nil {
				return err
			}
			raw, expires, err := tokens.Issue(shared.Principal{UserID: userID, Username: username, Role: role})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"token":      raw,
				"expires_at": expires.UTC().Format(time.RFC3339),
			})
		},
	}
	issue.Flags().Int64Var(&userID, "user-id", 0, "subject user id")
	issue.Flags().StringVar(&username, "username", "", "display name")
	issue.Flags().StringVar(&role, "role", shared.RoleUser, "role: admin or user")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "lifetime (defaults to JWT_TTL)")
	cmd.AddCommand(issue)
	return cmd
}
