package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"giffer/internal/filesystem"
	"giffer/internal/logging"
	"giffer/internal/mediatypes"
	"giffer/internal/query"
	"giffer/internal/startup"
)

func newAddCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>",
		Short: "Copy a file into the library",
		Long: `Copy a file into the library without starting the gallery. A running
instance picks the file up through its watcher; otherwise it is indexed on
the next start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := startup.LoadConfig(v)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			lib, err := filesystem.NewLibrary(cfg.LibraryDir, mediatypes.NewFilter(cfg.Extensions))
			if err != nil {
				return err
			}
			name, err := lib.Ingest(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", name)
			return nil
		},
	}
}

func newSearchCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search the tag index",
		Long: `Print the files with a tag containing term, case-insensitively, one per
line as "filename: tag, tag". The persisted index is read directly, so this
works whether or not the gallery is running.

Examples:
  giffer search cat
  giffer search --store_backend sqlite "thumbs up"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := startup.LoadConfig(v)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			return searchIndex(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), startup.GetBuildInfo())
		},
	}
}

func searchIndex(ctx context.Context, cfg *startup.Config, term string, out io.Writer) error {
	store, _, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Load(ctx); err != nil {
		return err
	}

	results := query.Filter(store.Snapshot(), term)
	logging.Debug("search %q matched %d of %d files", term, len(results), store.Len())
	for _, e := range results {
		if _, err := fmt.Fprintf(out, "%s: %s\n", e.Filename, strings.Join(e.Tags, ", ")); err != nil {
			return err
		}
	}
	return nil
}
