package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "proofid/internal/jwt_token"
	id "proofid/pkg/domain"
)

var (
	tokenPrincipal string
	tokenTTL       time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a principal",
	Long: `Signs an access token for --principal with the configured JWT key.
Intended for local development and testing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		principal, err := id.ParsePrincipal(tokenPrincipal)
		if err != nil {
			return fmt.Errorf("invalid --principal: %w", err)
		}
		ttl := tokenTTL
		if ttl == 0 {
			ttl = cfg.JWT.TokenTTL
		}

		svc := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
		token, err := svc.GenerateAccessToken(principal, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenPrincipal, "principal", "", "Principal address (0x + 40 hex)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default JWT_TOKEN_TTL)")
	_ = tokenCmd.MarkFlagRequired("principal")
}
