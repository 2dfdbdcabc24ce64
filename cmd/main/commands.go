package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/CTAG07/chainwalk/pkg/markov"
	"github.com/CTAG07/chainwalk/pkg/store"
	"github.com/CTAG07/chainwalk/pkg/templating"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "chainwalk",
		Short:         "Train, store and walk token Markov chains",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "./config.json", "path to the JSON config file")

	root.AddCommand(
		newTrainCmd(a),
		newRunCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newStatsCmd(a),
		newListCmd(a),
		newRemoveCmd(a),
		newRenderCmd(a),
	)
	return root
}

func newTrainCmd(a *app) *cobra.Command {
	var (
		order int
		reset bool
	)
	cmd := &cobra.Command{
		Use:   "train <name> <file...>",
		Short: "Seed a chain from text files",
		Long: `Seed a chain from text files, creating it if needed.

Each file is split into runs at sentence-ending punctuation and blank
lines. An existing chain keeps its order and is seeded further unless
--reset is given. Use "-" to read from stdin.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]
			if err := store.ValidateName(name); err != nil {
				return err
			}

			c, err := a.store.Load(ctx, name, a.chainOptions()...)
			switch {
			case err == nil && !reset:
				a.logger.Info("Seeding existing chain", slog.String("chain_name", name), slog.Int("order", c.Order()))
			case err == nil || errors.Is(err, store.ErrChainNotFound):
				if !cmd.Flags().Changed("order") {
					order = a.config.Chain.Order
				}
				if c, err = markov.New(nil, append(a.chainOptions(), markov.WithOrder(order))...); err != nil {
					return err
				}
			default:
				return err
			}

			start := time.Now()
			var runs int
			for _, path := range args[1:] {
				n, err := seedFile(a, c, path, cmd)
				if err != nil {
					return err
				}
				runs += n
			}

			info, err := a.store.Save(ctx, name, c)
			if err != nil {
				return err
			}
			a.logger.Info("Training complete",
				slog.String("chain_name", name),
				slog.Int("runs_seeded", runs),
				slog.Duration("duration", time.Since(start)),
			)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "trained %s: %d runs, %d states (order %d)\n", name, runs, info.States, info.Order)
			return err
		},
	}
	cmd.Flags().IntVar(&order, "order", 0, "order of a new chain (default from config)")
	cmd.Flags().BoolVar(&reset, "reset", false, "discard the stored chain before seeding")
	return cmd
}

func seedFile(a *app, c *markov.Chain, path string, cmd *cobra.Command) (int, error) {
	in, err := openInput(path, cmd.InOrStdin())
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	runs, err := a.tokenizer.Runs(in)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, run := range runs {
		if err = c.Seed(run); err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
	}
	return len(runs), nil
}

func newRunCmd(a *app) *cobra.Command {
	var (
		noBack, noTokenMap, strict, asJSON bool
		count                              int
	)
	cmd := &cobra.Command{
		Use:   "run <name> [text...]",
		Short: "Generate a reply from a chain",
		Long: `Generate a reply from a chain, starting from a state matching the
given text. Without text the reply starts at the beginning of a run.

With --json each reply is printed as [back, root, forward].`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.store.Load(cmd.Context(), args[0], a.chainOptions()...)
			if err != nil {
				return err
			}
			input := a.tokenizer.Tokens(strings.Join(args[1:], " "))
			opts := []markov.RunOption{
				markov.WithBackSearch(!noBack),
				markov.WithTokenMapLookup(!noTokenMap),
				markov.WithRunMissingTokens(!strict),
			}

			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				res := c.Run(input, opts...)
				if asJSON {
					data, err := json.Marshal(res)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, string(data))
					if err != nil {
						return err
					}
					continue
				}
				if _, err = fmt.Fprintln(out, a.tokenizer.Join(res.All())); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noBack, "no-back", false, "do not walk backward from the start state")
	cmd.Flags().BoolVar(&noTokenMap, "no-token-map", false, "do not fall back to the token map")
	cmd.Flags().BoolVar(&strict, "strict", false, "print nothing when no start state matches the text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print each reply as JSON")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of replies to generate")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <name> <file>",
		Short: "Write a chain as JSON",
		Long:  `Write a chain as JSON to a file, or to stdout when the file is "-".`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.store.Load(cmd.Context(), args[0], a.chainOptions()...)
			if err != nil {
				return err
			}
			if args[1] == "-" {
				return c.WriteJSON(cmd.OutOrStdout())
			}
			var buf bytes.Buffer
			if err = c.WriteJSON(&buf); err != nil {
				return err
			}
			if err = atomic.WriteFile(args[1], &buf); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[1], err)
			}
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <name> <file>",
		Short: "Store a chain read from JSON",
		Long: `Store a chain read from a JSON export, replacing any chain of the
same name. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.ValidateName(args[0]); err != nil {
				return err
			}
			in, err := openInput(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()

			c, err := markov.ReadJSON(in, append(a.chainOptions(), markov.WithOrder(a.config.Chain.Order))...)
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", args[1], err)
			}
			info, err := a.store.Save(cmd.Context(), args[0], c)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %s: %d states (order %d)\n", info.Name, info.States, info.Order)
			return err
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats <name>",
		Short: "Show statistics of a chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.store.Load(cmd.Context(), args[0], a.chainOptions()...)
			if err != nil {
				return err
			}
			stats := c.Stats()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "order\t%d\n", stats.Order)
			fmt.Fprintf(w, "states\t%d\n", stats.States)
			fmt.Fprintf(w, "links\t%d\n", stats.TotalLinks)
			fmt.Fprintf(w, "frequency\t%d\n", stats.TotalFrequency)
			fmt.Fprintf(w, "starting tokens\t%d\n", stats.StartingTokens)
			fmt.Fprintf(w, "token map size\t%d\n", stats.TokenMapSize)
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the statistics as JSON")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tORDER\tSTATES\tCODEC\tUPDATED")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", info.Name, info.Order, info.States, info.Codec,
					info.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a stored chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return err
		},
	}
}

func newRenderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template with chain text",
		Long: `Render a template whose functions generate text from stored chains.

The argument is either the name of a *.tmpl file in the configured template
directory or the path of a template file, with "-" meaning stdin. Named
templates can be used as partials from either.

Functions: sentence, reply, replies, paragraphs, repeat, list,
randomChoice, randomInt, add, sub, inc.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := templating.NewTemplateManager(a.logger, a.store, a.tokenizer, *a.config.Templates, a.chainOptions()...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range tm.TemplateNames() {
				if name == args[0] {
					return tm.Execute(out, name, nil)
				}
			}

			in, err := openInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()
			content, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			return tm.ExecuteTemplateString(out, string(content), nil)
		},
	}
}
