package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/frahmantamala/document-management/internal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	seedAdminEmail    string
	seedAdminPassword string
)

var rootCmd = &cobra.Command{
	Use:   "document-management",
	Short: "Document Management",
	Long:  `Internal document management service: versioned document storage with role-based access control and an audit trail.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*internal.Config, error) {
	// Docker deployments mount no config file; everything comes from env.
	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		cfg := internal.LoadConfigFromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("error validating config from environment: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	return &cfg, nil
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@internal.local", "email for the seeded admin account")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "", "password for the seeded admin account (required)")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
