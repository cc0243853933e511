package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/pulpit/internal/pipe"
	"github.com/MrWong99/pulpit/internal/scripture"
	"github.com/MrWong99/pulpit/internal/transcript/phonetic"
	"github.com/MrWong99/pulpit/pkg/bible"
	"github.com/MrWong99/pulpit/pkg/bible/postgres"
)

func pipeCmd(opts *rootOptions) *cobra.Command {
	var maxChunk int
	cmd := &cobra.Command{
		Use:   "pipe",
		Short: "Speak the line protocol on stdin/stdout for a desktop front end",
		Long: "Reads AUDIO:<n> frames and JSON commands from stdin and writes one JSON\n" +
			"object per line to stdout. Logs go to stderr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, providers, _, _, err := opts.boot(ctx, bootOptions{speech: true, announce: true})
			if err != nil {
				return err
			}
			defer providers.Close()
			defer a.Shutdown(context.Background())

			slog.Info("pipe mode ready", "version", version)
			return pipe.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), pipe.Config{
				Sessions: a.Sessions(),
				Resolver: a.Resolver(),
				MaxChunk: maxChunk,
			})
		},
	}
	cmd.Flags().IntVar(&maxChunk, "max-chunk", pipe.DefaultMaxChunk, "largest accepted AUDIO payload in bytes")
	return cmd
}

func lookupCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "lookup <reference>",
		Short:   "Print the text of a reference such as \"Romans 8:28-30\"",
		Example: "  pulpit lookup John 3:16\n  pulpit lookup --json \"1 Cor 13:4-7\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, providers, _, _, err := opts.boot(ctx, bootOptions{})
			if err != nil {
				return err
			}
			defer providers.Close()
			defer a.Shutdown(context.Background())

			p, err := a.Resolver().Lookup(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			fmt.Fprintln(out, p.Reference)
			for _, v := range p.Verses {
				fmt.Fprintf(out, "%4d  %s\n", v.Verse, v.Text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the passage as JSON")
	return cmd
}

func extractCmd(_ *rootOptions) *cobra.Command {
	var (
		usePhonetic bool
		paraphrases bool
	)
	cmd := &cobra.Command{
		Use:   "extract [text]",
		Short: "List the references cited in text (read from stdin when no text is given)",
		Example: "  pulpit extract \"turn with me to John chapter three verse sixteen\"\n" +
			"  pulpit extract --phonetic < transcript.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			var popts []scripture.ParserOption
			if usePhonetic {
				popts = append(popts, scripture.WithBookMatcher(phonetic.New()))
			}
			parser := scripture.NewParser(popts...)
			out := cmd.OutOrStdout()

			emit := func(text string) {
				for _, ref := range parser.Extract(text) {
					fmt.Fprintln(out, ref)
				}
				if paraphrases {
					for _, p := range scripture.DetectParaphrases(text, scripture.DefaultParaphraseConfig()) {
						fmt.Fprintf(out, "~ %s\n", p)
					}
				}
			}

			if len(args) > 0 {
				emit(strings.Join(args, " "))
				return nil
			}
			sc := bufio.NewScanner(cmd.InOrStdin())
			sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
			for sc.Scan() {
				emit(sc.Text())
			}
			return sc.Err()
		},
	}
	cmd.Flags().BoolVar(&usePhonetic, "phonetic", false, "correct misheard book names")
	cmd.Flags().BoolVar(&paraphrases, "paraphrases", false, "also print quote and paraphrase candidates, prefixed with ~")
	return cmd
}

func indexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Embed every verse and rebuild the semantic index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, providers, _, _, err := opts.boot(ctx, bootOptions{})
			if err != nil {
				return err
			}
			defer providers.Close()
			defer a.Shutdown(context.Background())

			n, err := a.RebuildIndex(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d verses\n", n)
			return nil
		},
	}
}

func mcpCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the Scripture tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, providers, _, _, err := opts.boot(ctx, bootOptions{})
			if err != nil {
				return err
			}
			defer providers.Close()
			defer a.Shutdown(context.Background())

			slog.Info("mcp stdio server ready", "version", version)
			return a.Tools().RunStdio(ctx, version)
		},
	}
}

func importCmd(opts *rootOptions) *cobra.Command {
	var (
		dsn        string
		versions   []string
		dimensions int
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load the configured translation files into PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			opts.setupLogging(cfg)

			if dsn == "" {
				dsn = cfg.Bible.PostgresDSN
			}
			if dsn == "" {
				return errors.New("no database: set bible.postgres_dsn or pass --dsn")
			}
			if len(versions) == 0 {
				versions = slices.Sorted(maps.Keys(cfg.Bible.Sources))
			}
			if len(versions) == 0 {
				return errors.New("no translations: set bible.sources")
			}

			var sopts []postgres.Option
			if dimensions > 0 {
				sopts = append(sopts, postgres.WithDimensions(dimensions))
			}
			store, err := postgres.NewStore(ctx, dsn, sopts...)
			if err != nil {
				return err
			}
			defer store.Close()

			return importVersions(ctx, cmd.OutOrStdout(), store, cfg.Bible.Sources, versions)
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string (default: bible.postgres_dsn)")
	cmd.Flags().StringSliceVar(&versions, "translation", nil, "translations to import (default: every configured source)")
	cmd.Flags().IntVar(&dimensions, "dimensions", 0, "embedding column width when creating the schema (default 384)")
	return cmd
}

// verseInserter is the part of the Postgres store used by import.
type verseInserter interface {
	Insert(ctx context.Context, verses []bible.Verse) error
	Count(ctx context.Context) (int, error)
}

func importVersions(ctx context.Context, out io.Writer, store verseInserter, sources map[string]string, versions []string) error {
	for _, v := range versions {
		path, ok := sources[v]
		if !ok {
			return fmt.Errorf("no source configured for version %q", v)
		}
		verses, err := bible.LoadFile(path, v)
		if err != nil {
			return err
		}
		if err := store.Insert(ctx, verses); err != nil {
			return fmt.Errorf("import %s: %w", v, err)
		}
		fmt.Fprintf(out, "%s: %d verses\n", v, len(verses))
	}
	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "database now holds %d verses\n", n)
	return nil
}
