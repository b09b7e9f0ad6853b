package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/vitalguard/internal/api/auth"
	"github.com/good-yellow-bee/vitalguard/pkg/config"
)

var (
	tokenSubject  string
	tokenUsername string
	tokenRole     string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator bearer token",
	Long: `Sign a bearer token for the alert console with the server's JWT secret
(server.auth.jwt_secret or VITALGUARD_JWT_SECRET). Lifecycle changes made
with the token are attributed to --username, or to --subject when no
username is given.

Available roles:
  - operator: acknowledge, resolve and flag alerts; manage devices
  - admin: same as operator

Example:
  vitalctl token --subject op-7 --username nurse.jones --ttl 8h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenSubject == "" {
			return fmt.Errorf("--subject is required")
		}
		switch tokenRole {
		case auth.RoleOperator, auth.RoleAdmin:
		default:
			return fmt.Errorf("invalid role %q (must be operator or admin)", tokenRole)
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Server.Auth.JWTSecret == "" {
			return fmt.Errorf("no JWT secret configured: set server.auth.jwt_secret or %s", config.EnvJWTSecret)
		}

		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.Server.Auth.TokenTTL
		}
		svc := auth.NewJWTService([]byte(cfg.Server.Auth.JWTSecret), ttl)
		token, err := svc.GenerateToken(tokenSubject, tokenUsername, tokenRole)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}

		out := cmd.OutOrStdout()
		if output == "json" {
			return printJSON(out, map[string]any{
				"token":     token,
				"expiresAt": time.Now().Add(svc.TTL()).UTC().Format(time.RFC3339),
			})
		}
		fmt.Fprintln(out, token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "operator id (required)")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "name lifecycle changes are attributed to")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleOperator, "role (operator, admin)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default server.auth.token_ttl)")
	rootCmd.AddCommand(tokenCmd)
}
