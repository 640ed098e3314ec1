// Command rl4 is the CLI/daemon entrypoint: one subcommand per operation
// named in §6, plus `serve` for hosts that prefer HTTP over spawning a new
// process per call.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soynido/rl4"
)

var (
	configPath string
	workspace  string
	jsonOutput bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rl4",
		Short: "Local development-memory engine for AI coding agents",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON or .rl4.yaml config file")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace root (defaults to the current directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON instead of formatted text")

	rootCmd.AddCommand(
		serveCmd(),
		getEvidenceCmd(),
		getTimelineCmd(),
		getIntentGraphCmd(),
		searchContextCmd(),
		searchChatsCmd(),
		searchCLICmd(),
		askCmd(),
		suggestEditCmd(),
		applyEditCmd(),
		runCommandCmd(),
		listWorkspacesCmd(),
		setWorkspaceCmd(),
		runSnapshotCmd(),
		finalizeSnapshotCmd(),
		guardrailCmd(),
		replayCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig mirrors the teacher's --config JSON loader, extended with a
// workspace-local .rl4.yaml fallback (§4.13) and RL4_* environment
// overrides.
func loadConfig() (rl4.Config, error) {
	cfg := rl4.DefaultConfig()

	path := configPath
	if path == "" {
		if _, err := os.Stat(".rl4.yaml"); err == nil {
			path = ".rl4.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return rl4.Config{}, fmt.Errorf("reading config: %w", err)
		}
		if len(path) > 5 && (path[len(path)-5:] == ".yaml" || path[len(path)-4:] == ".yml") {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return rl4.Config{}, fmt.Errorf("parsing yaml config: %w", err)
			}
		} else if err := json.Unmarshal(data, &cfg); err != nil {
			return rl4.Config{}, fmt.Errorf("parsing json config: %w", err)
		}
	}

	if v := os.Getenv("RL4_WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := os.Getenv("RL4_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("RL4_REMOTE_SYNC_BASE_URL"); v != "" {
		cfg.RemoteSync.BaseURL = v
	}
	if v := os.Getenv("RL4_REMOTE_SYNC_TOKEN"); v != "" {
		cfg.RemoteSync.Token = v
	}
	if workspace != "" {
		cfg.WorkspaceRoot = workspace
	}

	return cfg, nil
}

func newEngine() (rl4.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return rl4.New(cfg)
}

// printResult renders v either as raw JSON (--json) or, for the plain-text
// results that already carry their own rendering (dashboards, answer
// bundles), as that text.
func printResult(v interface{}) error {
	if s, ok := v.(string); ok && !jsonOutput {
		fmt.Println(s)
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func fatal(err error) error {
	slog.Error("rl4: command failed", "error", err)
	return err
}
