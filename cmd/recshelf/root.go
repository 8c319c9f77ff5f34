package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCommand() *cobra.Command {
	v := viper.New()
	ctx := newCommandContext(v)

	rootCmd := &cobra.Command{
		Use:   "recshelf",
		Short: "Keep a catalog of audio recordings in sync with a directory",
		Long: `recshelf watches one directory of audio files and keeps a sqlite catalog
of recordings in step with it. Moved files are relinked by content
fingerprint, vanished files are marked missing, new files are imported.

Configuration comes from RECSHELF_* environment variables, an optional
config file and the flags below.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFile, "config", "c", "", "config file (default: $XDG_CONFIG_HOME/recshelf/config.*)")
	flags.StringP("watch-dir", "w", "", "directory of audio files to keep in sync")
	flags.String("db", "", "path to the catalog database")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json, console, auto")

	_ = v.BindPFlag("watch_dir", flags.Lookup("watch-dir"))
	_ = v.BindPFlag("db_path", flags.Lookup("db"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log_format", flags.Lookup("log-format"))

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newRecordingsCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))

	return rootCmd
}
