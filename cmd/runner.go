package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/omrelabs/omre/internal/services"
	"github.com/omrelabs/omre/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	market     services.MarketService
	google     *services.GoogleService
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Market     services.MarketService
	Google     *services.GoogleService
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		market:     opts.Market,
		google:     opts.Google,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, kiteCommand, pipelineCommand, topCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger. The TUI command uses this to
// push log lines to a file instead of the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// openStore connects to the cloud Postgres database, falling back to
// the local SQLite store when no cloud URL is configured or the
// connection fails. Commands always get a working store.
func (r *Runner) openStore() (*sql.DB, error) {
	if r.config.CloudDatabase.URL != "" {
		db, err := shared.NewCloudDatabase(r.config.CloudDatabase.URL)
		if err == nil {
			shared.ConfigureDatabase(db, r.config.CloudDatabase.MaxOpenConns, r.config.CloudDatabase.MaxIdleConns)
			return db, nil
		}
		r.logger.Warn("cloud database unreachable, using local store", "error", err)
	}

	path := r.config.LocalDatabase.Path
	if path == "" {
		path = "omre.db"
	}

	db, err := shared.NewLocalDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	return db, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
