package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/voxscribe/internal/config"
	"github.com/fmueller/voxscribe/internal/logging"
	"github.com/fmueller/voxscribe/internal/media"
	"github.com/fmueller/voxscribe/internal/platform"
	"github.com/fmueller/voxscribe/internal/version"
	"github.com/fmueller/voxscribe/internal/whisper"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type appState struct {
	verbose    bool
	jsonLogs   bool
	noProgress bool
	model      string
	language   string
	backend    string
	configPath string
	output     string
	batch      bool

	cfg    *config.Config
	logger *zap.Logger

	newEngineFn func(ctx context.Context) (whisper.Engine, error)
	engine      whisper.Engine
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&appState{})
}

func newRootCmd(app *appState) *cobra.Command {
	if app.model == "" {
		app.model = whisper.DefaultModel
	}
	if app.language == "" {
		app.language = "auto"
	}
	if app.backend == "" {
		app.backend = config.BackendCLI
	}

	cmd := &cobra.Command{
		Use:   "voxscribe <input>",
		Short: "Transcribe audio and video files to text with a local whisper runtime",
		Long: "Transcribe an audio or video file to plain text, or every recognized file in a\n" +
			"directory with --batch. Recognized extensions: " + strings.Join(media.Extensions(), " ") + ".",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindOutputFlags(cmd, app)

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.Flags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.model, "model", app.model, "Model size: "+strings.Join(whisper.ModelNames(), "|"))
	cmd.Flags().StringVar(&app.language, "language", app.language, "Language code (auto|en|de|...) for transcription")
	cmd.Flags().StringVar(&app.backend, "backend", app.backend, "Transcription backend: cli|http")
	cmd.Flags().StringVar(&app.configPath, "config", app.configPath, "Path to a YAML config file")
}

func bindOutputFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVarP(&app.output, "output", "o", app.output, "Write the transcript to this file instead of stdout")
	cmd.Flags().BoolVar(&app.batch, "batch", app.batch, "Treat input as a directory and transcribe every recognized file in it")
}

// prepare loads the config file, lets explicitly set flags win over it and
// builds the logger.
func (a *appState) prepare(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		model, err := whisper.ResolveModel(a.model)
		if err != nil {
			return err
		}
		cfg.Model = model.Name
	}
	if flags.Changed("language") {
		cfg.Language = a.language
	}
	if flags.Changed("backend") {
		cfg.Engine.Backend = strings.TrimSpace(strings.ToLower(a.backend))
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	a.model = cfg.Model
	a.language = sanitizeLanguage(cfg.Language)
	a.backend = cfg.Engine.Backend

	logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs, Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger.With(zap.String("run_id", uuid.NewString()))
	a.logger.Debug("voxscribe starting", zap.String("version", version.Details()), zap.String("backend", a.backend), zap.String("model", a.model))
	return nil
}

func loadConfig(override string) (*config.Config, error) {
	path, err := platform.ResolveConfigPath(override)
	if err != nil {
		// No default location on this OS; built-in defaults apply.
		return config.Default(), nil
	}

	if override != "" {
		return config.Load(path)
	}
	return config.LoadOptional(path)
}

func (a *appState) settings() *config.Config {
	if a.cfg == nil {
		a.cfg = config.Default()
	}
	return a.cfg
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
