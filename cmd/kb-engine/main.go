// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the kb-engine CLI. It exposes the
// dual-store knowledge base operations: batch import, planned deletion,
// inspection, and startup verification.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/kb-engine/internal/embed"
	"github.com/pdiddy/kb-engine/internal/engine"
	"github.com/pdiddy/kb-engine/internal/secrets"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the kb-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "kb-engine",
	Short: "Dual-store knowledge base with enforced consistency",
	Long: `kb-engine maintains a knowledge base stored twice: paragraph, entity, and
relation embeddings in a vector store, and the same items as nodes and edges
in a knowledge graph. Every mutation keeps the two stores in agreement, and
startup verification refuses to serve a diverged state.

Import ingests extraction batch files with content-hash deduplication.
Delete plans an exact impact first and applies it only after explicit
confirmation, behind a safety threshold. Inspect reports what remains of a
batch or of the whole base in each store.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./kb-engine.yaml or ~/.config/kb-engine/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "base directory for vectors.db, graph.db, and ledger.db (default: data)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("kb-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "kb-engine"))
		}
	}

	viper.SetEnvPrefix("KB_ENGINE")
	viper.AutomaticEnv()

	viper.SetDefault("data_dir", "data")
	viper.SetDefault("max_delete_nodes", types.DefaultMaxDeleteNodes)
	viper.SetDefault("embedding.dimensions", 768)
	viper.SetDefault("embedding.max_retries", 3)
	viper.SetDefault("embedding.timeout", "30s")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// engineConfig assembles the engine configuration from flags, config file,
// environment, and secrets, in that precedence order.
func engineConfig() types.EngineConfig {
	cfg := types.EngineConfig{
		DataDir:        viper.GetString("data_dir"),
		MaxDeleteNodes: viper.GetInt("max_delete_nodes"),
		Embedding: types.EmbeddingConfig{
			Endpoint:   viper.GetString("embedding.endpoint"),
			Model:      viper.GetString("embedding.model"),
			Dimensions: viper.GetInt("embedding.dimensions"),
			MaxRetries: viper.GetInt("embedding.max_retries"),
			Timeout:    viper.GetDuration("embedding.timeout"),
		},
	}
	if flagDir, _ := rootCmd.PersistentFlags().GetString("data-dir"); flagDir != "" {
		cfg.DataDir = flagDir
	}
	cfg.Embedding.APIKey = secretDefault("embedding-api-key", viper.GetString("embedding.api_key"))
	return cfg.WithDefaults()
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// openEngine builds the engine with the configured embedder. An empty
// embedding endpoint selects the offline deterministic embedder.
func openEngine() (*engine.Engine, error) {
	cfg := engineConfig()

	var embedder embed.Embedder
	if cfg.Embedding.Endpoint != "" {
		embedder = embed.NewClient(cfg.Embedding)
	}
	return engine.New(cfg, embedder, newLogger())
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
