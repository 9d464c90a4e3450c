// Package main implements the operator toolbox: thin cobra wrappers over
// the Query Analyzer's index suggestions and the Tiered Cache's
// namespace/prefix invalidation, for read-only introspection and
// maintenance against a running deployment's config (SPEC_FULL §12).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Omarrvv/final-bot-sub005/internal/batch"
	"github.com/Omarrvv/final-bot-sub005/internal/cache"
	"github.com/Omarrvv/final-bot-sub005/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "toolbox",
	Short: "Operator tools for the tourism conversational core",
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.AddCommand(indexSuggestionsCmd)
	rootCmd.AddCommand(cacheCmd)
}

var samplesFile string
var indexesFile string

var indexSuggestionsCmd = &cobra.Command{
	Use:   "index-suggestions",
	Short: "Suggest missing indexes from a recorded query-sample log",
	Long: `Reads a JSON array of batch.QuerySample (as emitted by the
repository layer's query instrumentation) and a JSON object mapping table
name to its currently indexed columns, and prints the Query Analyzer's
index suggestions ordered by descending occurrence count.`,
	RunE: runIndexSuggestions,
}

func init() {
	indexSuggestionsCmd.Flags().StringVar(&samplesFile, "samples", "", "Path to a JSON array of query samples (required)")
	indexSuggestionsCmd.Flags().StringVar(&indexesFile, "known-indexes", "", "Path to a JSON object of table -> indexed columns (optional)")
	_ = indexSuggestionsCmd.MarkFlagRequired("samples")
}

func runIndexSuggestions(cmd *cobra.Command, args []string) error {
	samples, err := readSamples(samplesFile)
	if err != nil {
		return fmt.Errorf("reading samples: %w", err)
	}

	knownIndexes, err := readKnownIndexes(indexesFile)
	if err != nil {
		return fmt.Errorf("reading known indexes: %w", err)
	}

	analyzer := batch.NewAnalyzer(nil)
	for _, s := range samples {
		analyzer.Record(s)
	}

	suggestions := analyzer.SuggestIndexes(knownIndexes)
	if len(suggestions) == 0 {
		fmt.Println("no index suggestions; every frequent predicate column is already indexed")
		return nil
	}

	for _, s := range suggestions {
		fmt.Printf("%-30s %-20s occurrences=%d\n", s.Table, s.Column, s.Occurrences)
	}
	return nil
}

func readSamples(path string) ([]batch.QuerySample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var samples []batch.QuerySample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func readKnownIndexes(path string) (map[string]map[string]bool, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var known map[string]map[string]bool
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	return known, nil
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Invalidate Tiered Cache entries",
}

var invalidateNamespace string
var invalidatePrefix string

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Invalidate a cache namespace or key prefix",
	RunE:  runCacheInvalidate,
}

func init() {
	cacheInvalidateCmd.Flags().StringVar(&invalidateNamespace, "namespace", "", "Namespace to invalidate")
	cacheInvalidateCmd.Flags().StringVar(&invalidatePrefix, "prefix", "", "Key prefix to invalidate")
	cacheCmd.AddCommand(cacheInvalidateCmd)
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	if invalidateNamespace == "" && invalidatePrefix == "" {
		return fmt.Errorf("one of --namespace or --prefix is required")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	tieredCache := cache.New(cache.NewRedisBackend(redisClient), cache.Config{
		L1Capacity:   cfg.Cache.L1Capacity,
		DefaultL2TTL: cfg.Cache.L2TTL,
	}, nil)

	ctx := context.Background()
	if invalidateNamespace != "" {
		tieredCache.InvalidateNamespace(ctx, invalidateNamespace)
		fmt.Printf("invalidated namespace %q\n", invalidateNamespace)
	}
	if invalidatePrefix != "" {
		tieredCache.InvalidatePrefix(ctx, invalidatePrefix)
		fmt.Printf("invalidated prefix %q\n", invalidatePrefix)
	}
	return nil
}
