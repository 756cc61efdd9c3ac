// Package cmd holds the proofid command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"proofid/internal/platform/config"
	pstrings "proofid/pkg/platform/strings"
)

var cfg config.Server

var rootCmd = &cobra.Command{
	Use:   "proofid",
	Short: "Identity-gated health record service",
	Long: `proofid issues time-limited identity credentials to principals and gates
creation of and delegated access to health records on those credentials.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.FromEnv()
		return applyFlags(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("addr", "", "HTTP listen address (env: PROOFID_ADDR)")
	flags.String("admins", "", "Comma separated admin principals (env: PROOFID_ADMINS)")
	flags.String("database-url", "", "PostgreSQL connection URL (env: DATABASE_URL)")
	flags.String("redis-url", "", "Redis URL for the identity store (env: REDIS_URL)")
	flags.String("kafka-brokers", "", "Comma separated Kafka brokers for audit streaming (env: KAFKA_BROKERS)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	flags.String("log-format", "", "Log format: json or text (env: LOG_FORMAT)")
	flags.Int("rate-limit-client", 0, "Requests per window per client IP, 0 disables (env: RATE_LIMIT_CLIENT)")
	flags.Int("rate-limit-principal", 0, "Authenticated requests per window per principal, 0 disables (env: RATE_LIMIT_PRINCIPAL)")

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

// applyFlags overrides environment configuration with explicitly set flags.
func applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	str := func(name string, dst *string) error {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetString(name)
		if err != nil {
			return fmt.Errorf("read --%s: %w", name, err)
		}
		*dst = v
		return nil
	}

	var admins, brokers string
	for name, dst := range map[string]*string{
		"addr":          &cfg.Addr,
		"database-url":  &cfg.Database.URL,
		"redis-url":     &cfg.Redis.URL,
		"log-level":     &cfg.LogLevel,
		"log-format":    &cfg.LogFormat,
		"admins":        &admins,
		"kafka-brokers": &brokers,
	} {
		if err := str(name, dst); err != nil {
			return err
		}
	}
	if flags.Changed("admins") {
		cfg.Admins = pstrings.SplitList(admins, ",")
	}
	if flags.Changed("kafka-brokers") {
		cfg.Kafka.Brokers = pstrings.SplitList(brokers, ",")
	}
	for name, dst := range map[string]*int{
		"rate-limit-client":    &cfg.RateLimit.ClientLimit,
		"rate-limit-principal": &cfg.RateLimit.PrincipalLimit,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return fmt.Errorf("read --%s: %w", name, err)
		}
		*dst = v
	}
	return nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
