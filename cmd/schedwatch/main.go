package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"schedwatch/internal/config"
	"schedwatch/internal/export"
	"schedwatch/internal/log"
	"schedwatch/internal/notifications"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "schedwatch",
		Short: "Schedule watcher daemon",
		Long: "schedwatch reads free-text schedules such as \"пн-пт: 9-18; сб: 10-14\" " +
			"from catalog directories, expands them into upcoming occurrences and " +
			"raises desktop reminders before they start.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default is the XDG config location)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the daemon",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(configPath)
			},
		},
		newCheckCommand(),
		newExportCommand(&configPath),
		newInitCommand(),
	)
	return root
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	closer, err := log.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	return runDaemon(cfg)
}

func newCheckCommand() *cobra.Command {
	var (
		nowFlag string
		days    int
	)

	cmd := &cobra.Command{
		Use:   "check TEXT",
		Short: "Parse a schedule text and print its timetable and occurrences",
		Long:  "Parse a schedule text and print its timetable and occurrences. Use - to read the text from stdin.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if nowFlag != "" {
				t, err := time.Parse(time.RFC3339, nowFlag)
				if err != nil {
					return fmt.Errorf("invalid --now: %w", err)
				}
				now = t
			}

			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}

			return writeCheck(cmd.OutOrStdout(), text, now, days)
		},
	}
	cmd.Flags().StringVar(&nowFlag, "now", "", "reference time in RFC 3339 (default is the current time)")
	cmd.Flags().IntVarP(&days, "days", "d", 7, "number of days to expand")
	return cmd
}

func newExportCommand(configPath *string) *cobra.Command {
	var (
		days   int
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write upcoming occurrences of all schedules as iCalendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			closer, err := log.Setup(cfg.Logging)
			if err != nil {
				return err
			}
			defer closer.Close()

			if cmd.Flags().Changed("days") {
				cfg.DaysAhead = days
			}

			app, err := NewApp(cfg, time.Now)
			if err != nil {
				return err
			}
			return writeExport(app, cmd.OutOrStdout(), output)
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 7, "number of days to export, overrides days_ahead")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file or directory (default stdout)")
	return cmd
}

// writeExport loads the catalogs and writes their occurrences to output,
// a file, a directory or stdout when empty
func writeExport(app *App, stdout io.Writer, output string) error {
	app.loadCatalogs()
	app.regenerate()

	now := app.now().In(app.location)
	y, m, d := now.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, app.location).AddDate(0, 0, app.config.DaysAhead)
	occurrences := app.scheduleStorage.OccurrencesWithin(now, end)

	if output == "" {
		return export.Write(stdout, occurrences, now)
	}

	if info, err := os.Stat(output); err == nil && info.IsDir() {
		output = filepath.Join(output, export.Filename(now))
	}
	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := export.Write(file, occurrences, now); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", output, err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d occurrences to %s\n", len(occurrences), output)
	return nil
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration and notification templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			configPath, err := config.WriteDefaultConfig()
			if err != nil {
				return fmt.Errorf("error creating default config: %w", err)
			}
			fmt.Fprintf(out, "Created default configuration at: %s\n", configPath)

			dir, err := notifications.TemplatesDir()
			if err != nil {
				return err
			}
			if err := notifications.CreateDefaultTemplates(dir); err != nil {
				return fmt.Errorf("error creating default templates: %w", err)
			}
			fmt.Fprintf(out, "Created default notification templates in: %s\n", dir)
			return nil
		},
	}
}
