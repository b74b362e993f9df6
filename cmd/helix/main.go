// Command helix is a CLI over the decision index: sync a directory of
// markdown decision records, then query it by semantic search,
// supersession chain, or related-decision lookup.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixidx/helix"
)

// Exit codes: 0 success, 1 invalid decision id/not-found/empty-result,
// 2 any other failure (store/lock/config errors, and argument errors
// reported by cobra).
const (
	exitOK       = 0
	exitNoResult = 1
	exitFailure  = 2
)

var (
	decisionsDir string
	dbPath       string
	jsonOutput   bool
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	root := &cobra.Command{
		Use:   "helix",
		Short: "Query a directory of markdown decision records as a knowledge index",
	}
	root.PersistentFlags().StringVar(&decisionsDir, "directory", defaultDecisionsDir(), "decisions directory")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "index file path (default: ~/.helix/helix.db)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of a table")

	root.AddCommand(newSyncCmd(), newSearchCmd(), newChainCmd(), newRelatedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
}

// defaultDecisionsDir mirrors the reference CLI layout: $HOME/.helix/data/decisions.
func defaultDecisionsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./decisions"
	}
	return filepath.Join(home, ".helix", "data", "decisions")
}

func newEngine() (helix.Engine, error) {
	cfg := helix.DefaultConfig()
	cfg.DecisionsDir = decisionsDir
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return helix.New(cfg)
}

func exitFor(err error) int {
	switch {
	case errors.Is(err, helix.ErrEmptyResult), errors.Is(err, helix.ErrNotFound):
		return exitNoResult
	default:
		return exitFailure
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the index against the decisions directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFailure)
			}
			defer e.Close()

			res, err := e.Sync(cmd.Context())
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFor(err))
			}

			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.File, w.Reason)
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			fmt.Printf("added %d, changed %d, removed %d (%d warnings)\n",
				res.Added, res.Changed, res.Removed, len(res.Warnings))
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var limit int
	var status, tags string
	var related bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Reconcile the index, then run semantic search over it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFailure)
			}
			defer e.Close()

			syncRes, err := e.Sync(cmd.Context())
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFor(err))
			}
			for _, w := range syncRes.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.File, w.Reason)
			}

			var opts []helix.SearchOption
			opts = append(opts, helix.WithLimit(limit))
			if status != "" {
				opts = append(opts, helix.WithStatus(status))
			}
			if tags != "" {
				opts = append(opts, helix.WithTags(splitTags(tags)...))
			}
			if related {
				opts = append(opts, helix.WithRelated())
			}

			hits, err := e.Search(cmd.Context(), args[0], opts...)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFor(err))
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(hits)
			}
			for _, h := range hits {
				fmt.Printf("%6d  %5.3f  %-10s  %s\n", h.DecisionID, h.Score, h.Status, h.Title)
				for _, n := range h.Related {
					fmt.Printf("           %-12s %6d  %s\n", n.Kind, n.DecisionID, n.Title)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags a decision must all carry")
	cmd.Flags().BoolVar(&related, "related", false, "attach each result's 1-hop neighbors")
	return cmd
}

func splitTags(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newChainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain <decision-id>",
		Short: "Walk the supersession history of a decision",
		Long:  "Walk the supersession history of a decision forward in time: starting at\nthe given decision, repeatedly move to the decision that supersedes it,\nuntil reaching one that nothing supersedes (marked current).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := helix.ParseDecisionID(args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitNoResult)
			}

			e, err := newEngine()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFailure)
			}
			defer e.Close()

			chain, err := e.Chain(cmd.Context(), id)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFor(err))
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(chain)
			}
			for i, n := range chain {
				marker := ""
				if n.Current {
					marker = " (current)"
				}
				if i > 0 {
					fmt.Print(" -> ")
				}
				fmt.Printf("%d%s", n.DecisionID, marker)
			}
			fmt.Println()
			return nil
		},
	}
	return cmd
}

func newRelatedCmd() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "related <decision-id>",
		Short: "List decisions connected to a decision within N hops",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := helix.ParseDecisionID(args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitNoResult)
			}

			e, err := newEngine()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFailure)
			}
			defer e.Close()

			nodes, err := e.Related(cmd.Context(), id, depth)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitFor(err))
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(nodes)
			}
			for _, n := range nodes {
				fmt.Printf("%6d  depth %d  %-12s  %s\n", n.DecisionID, n.Depth, n.Kind, n.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 1, "maximum hop count")
	return cmd
}
