package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"giffer/internal/logging"
	"giffer/internal/startup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(startup.NewViper()).ExecuteContext(ctx); err != nil {
		logging.Error("%v", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "giffer [file]",
		Short: "GIFfer - a tagged GIF library",
		Long: `GIFfer watches a directory of GIFs, keeps a tag index for it and serves
a gallery on the loopback interface.

Passing a file copies it into the library. If GIFfer is already running,
the file is handed to the running instance and this process exits.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var file string
			if len(args) == 1 {
				file = args[0]
			}
			return runService(cmd.Context(), v, file)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(startup.KeyDataDir, "", "data directory (default ~/Documents/GIFfer)")
	flags.String(startup.KeyLibraryDir, "", "watched GIF directory (default <data_dir>/gifs)")
	flags.String(startup.KeyTagsFile, "", "tag index file (default <data_dir>/tags.json)")
	flags.String(startup.KeyStoreBackend, startup.BackendJSON, "tag store backend: json or sqlite")
	flags.String(startup.KeyIntakeDir, "", "directory whose new files are moved into the library")
	flags.StringSlice(startup.KeyExtensions, []string{".gif"}, "file extensions to track")
	flags.Int(startup.KeyPort, 7373, "gallery port on 127.0.0.1")
	flags.Bool(startup.KeyMetricsEnabled, false, "serve Prometheus metrics")
	flags.Int(startup.KeyMetricsPort, 9393, "metrics port on 127.0.0.1")
	flags.String(startup.KeyLogFile, "", "also write logs to this rotated file")
	flags.Int(startup.KeyThumbnailWorkers, 0, "startup thumbnail warm-up workers (0 = auto)")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	_ = v.BindPFlags(flags)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		if level == "" {
			// Subcommands print results, not startup chatter.
			if cmd.HasParent() && !logging.IsDebugEnabled() {
				logging.SetLevel(logging.LevelWarn)
			}
			return nil
		}
		parsed, ok := logging.ParseLevel(level)
		if !ok {
			return fmt.Errorf("invalid --log-level %q", level)
		}
		logging.SetLevel(parsed)
		return nil
	}

	rootCmd.AddCommand(newAddCmd(v), newSearchCmd(v), newVersionCmd())
	return rootCmd
}
