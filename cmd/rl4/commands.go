package main

import (
	"github.com/spf13/cobra"

	"github.com/soynido/rl4"
)

func getEvidenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-evidence",
		Short: "Render the hot-files/sessions dashboard (evidence.md)",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpGetEvidence(cmd.Context())
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
}

func getTimelineCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "get-timeline",
		Short: "Render the narrative journal, optionally scoped to a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpGetTimeline(cmd.Context(), from, to)
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "inclusive start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "inclusive end date (YYYY-MM-DD)")
	return cmd
}

func getIntentGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-intent-graph",
		Short: "Dump the coupling graph and file chains as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpGetIntentGraph(cmd.Context())
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
}

func searchFlags(cmd *cobra.Command, in *rl4.SearchInput) {
	cmd.Flags().StringVar(&in.Tag, "tag", "", "filter by chunk tag")
	cmd.Flags().StringVar(&in.File, "file", "", "filter by file path substring")
	cmd.Flags().StringVar(&in.DateFrom, "from", "", "inclusive start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.DateTo, "to", "", "inclusive end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&in.Limit, "limit", 0, "result cap (defaults to the configured ranker limit)")
}

func searchContextCmd() *cobra.Command {
	var in rl4.SearchInput
	cmd := &cobra.Command{
		Use:   "search-context <query>",
		Short: "Hybrid search over code, chat, CLI, and dashboard chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Query = args[0]
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpSearchContext(cmd.Context(), in)
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
	searchFlags(cmd, &in)
	cmd.Flags().StringVar(&in.Source, "source", "", "restrict to one chunk kind (code, chat, cli, decisions, evidence, timeline)")
	return cmd
}

func searchChatsCmd() *cobra.Command {
	var in rl4.SearchInput
	cmd := &cobra.Command{
		Use:   "search-chats <query>",
		Short: "Search only chat-transcript chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Query = args[0]
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpSearchChats(cmd.Context(), in)
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
	searchFlags(cmd, &in)
	return cmd
}

func searchCLICmd() *cobra.Command {
	var in rl4.SearchInput
	cmd := &cobra.Command{
		Use:   "search-cli <query>",
		Short: "Search only CLI-history chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Query = args[0]
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpSearchCLI(cmd.Context(), in)
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
	searchFlags(cmd, &in)
	return cmd
}

func askCmd() *cobra.Command {
	var in rl4.SearchInput
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a cited question over everything the engine has indexed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Query = args[0]
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpAsk(cmd.Context(), in)
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
	searchFlags(cmd, &in)
	return cmd
}

func suggestEditCmd() *cobra.Command {
	var intent string
	cmd := &cobra.Command{
		Use:   "suggest-edit <file>",
		Short: "Fetch a file's content plus the lessons selected for editing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpSuggestEdit(cmd.Context(), rl4.SuggestEditInput{FilePath: args[0], Intent: intent})
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
	cmd.Flags().StringVar(&intent, "intent", "", "free-text description of the intended change")
	return cmd
}

func applyEditCmd() *cobra.Command {
	var contentFile, description string
	cmd := &cobra.Command{
		Use:   "apply-edit <file>",
		Short: "Write new content to a file and record a snapshot version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContentFile(contentFile)
			if err != nil {
				return fatal(err)
			}
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpApplyEdit(cmd.Context(), rl4.ApplyEditInput{
				FilePath: args[0], Content: content, Description: description,
			})
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
	cmd.Flags().StringVar(&contentFile, "content-file", "", "path to a file holding the new content (reads stdin if omitted)")
	cmd.Flags().StringVar(&description, "description", "", "free-text description of the change")
	return cmd
}

func runCommandCmd() *cobra.Command {
	var timeoutMs int
	cmd := &cobra.Command{
		Use:   "run-command <command> [args...]",
		Short: "Run a shell command in the workspace root and record it to CLI history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpRunCommand(cmd.Context(), rl4.RunCommandInput{
				Command: args[0], Args: args[1:], TimeoutMs: timeoutMs,
			})
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 30000, "command timeout in milliseconds")
	return cmd
}

func listWorkspacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-workspaces",
		Short: "List known workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpListWorkspaces(cmd.Context())
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
}

func setWorkspaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-workspace <id>",
		Short: "Switch the active workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			if err := eng.OpSetWorkspace(cmd.Context(), args[0]); err != nil {
				return fatal(err)
			}
			return printResult(map[string]string{"workspace": args[0]})
		},
	}
}

func runSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-snapshot",
		Short: "Scan the workspace and record a snapshot version of every file",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpRunSnapshot(cmd.Context())
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
}

func finalizeSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize-snapshot",
		Short: "Resolve pending interventions and persist the adapted CRE state",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			if err := eng.OpFinalizeSnapshot(cmd.Context()); err != nil {
				return fatal(err)
			}
			return printResult(map[string]string{"status": "finalized"})
		},
	}
}

// replayCmd re-derives the CRE state from the intervention log alone, for
// offline debugging of the scoring/selection pipeline without touching the
// live workspace.
func replayCmd() *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the intervention log into a fresh CRE state and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fatal(err)
			}
			if logPath == "" {
				logPath = cfg.WorkspaceRoot + "/.rl4/.internal/cre_interventions.jsonl"
			}
			state := replayLog(logPath)
			return printResult(state)
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "", "path to cre_interventions.jsonl (defaults to the workspace's own log)")
	return cmd
}

func guardrailCmd() *cobra.Command {
	var kind, filePath string
	cmd := &cobra.Command{
		Use:   "guardrail <text>",
		Short: "Check a query or response against the closed guardrail rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()
			out, err := eng.OpGuardrail(cmd.Context(), rl4.GuardrailInput{
				Text: args[0], Type: kind, FilePath: filePath,
			})
			if err != nil {
				return fatal(err)
			}
			return printResult(out)
		},
	}
	cmd.Flags().StringVar(&kind, "type", "query", "check kind: query or response")
	cmd.Flags().StringVar(&filePath, "file", "", "file path associated with a response check")
	return cmd
}

func readContentFile(path string) (string, error) {
	if path == "" {
		data, err := readAllStdin()
		return string(data), err
	}
	data, err := readFile(path)
	return string(data), err
}
