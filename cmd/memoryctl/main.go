package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/memoryengine/pkg/config"
	"github.com/cuemby/memoryengine/pkg/engine"
	"github.com/cuemby/memoryengine/pkg/log"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var cfg config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "memoryctl",
	Short: "Episodic memory engine control CLI",
	Long: `memoryctl drives the episodic memory engine directly, the same tool
surface an MCP server exposes over the wire: start and complete episodes,
tag and relate them, mine and recommend patterns, and run semantic queries.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("memoryctl version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(episodeCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(relationshipCmd)
	rootCmd.AddCommand(patternCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(batchCmd)
}

func initConfig() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})

	configPath, _ := rootCmd.PersistentFlags().GetString("config")
	loaded, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded
}

// withEngine opens an Engine for the duration of one command and stops it
// on the way out, the same single-shot-process model memoryctl runs under
// (unlike a long-lived MCP server, which would hold one Engine for its
// whole lifetime).
func withEngine(fn func(*engine.Engine) error) error {
	e, err := engine.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer e.Stop()
	return fn(e)
}
