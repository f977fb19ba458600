package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/itsmostafa/goprobe/internal/config"
	"github.com/itsmostafa/goprobe/internal/evaluator"
	"github.com/itsmostafa/goprobe/internal/host"
	"github.com/itsmostafa/goprobe/internal/session"
	"github.com/itsmostafa/goprobe/internal/version"
)

const envLogLevel = "GOPROBE_LOG_LEVEL"

var lang string
var memorySize int
var noRC bool
var noLocalRC bool
var noColor bool
var configPath string
var logLevel string

var rootCmd = &cobra.Command{
	Use:   "goprobe",
	Short: "Interactive session for embedded scripting languages",
	Long: `goprobe is a read-eval-print loop for embedded scripting languages.

It keeps a bounded history of inputs and results (_in_, _out_), the last
result (_) and the last error (_ex_), and lets you move into objects with
cd and back out with exit. Type help at the prompt for the command list.

Startup scripts are read from ~/.goproberc and ./.goproberc.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSession,
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("goprobe %s\n", version.String()))

	// Language flag with env var fallback
	defaultLang := ""
	if envLang := os.Getenv(config.EnvLanguage); envLang != "" {
		defaultLang = envLang
	}
	rootCmd.PersistentFlags().StringVarP(&lang, "lang", "l", defaultLang, "Host language (javascript, starlark, tengo)")
	rootCmd.PersistentFlags().IntVar(&memorySize, "memory-size", 0, "Number of inputs and results to keep (0 = config default)")
	rootCmd.PersistentFlags().BoolVar(&noRC, "no-rc", false, "Skip all startup scripts")
	rootCmd.PersistentFlags().BoolVar(&noLocalRC, "no-local-rc", false, "Skip ./.goproberc")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/goprobe/config.yaml)")

	defaultLevel := "warn"
	if envLevel := os.Getenv(envLogLevel); envLevel != "" {
		defaultLevel = envLevel
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLevel, "Log level (debug, info, warn, error)")
}

func runSession(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd.ErrOrStderr(), logLevel)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Disabled {
		logger.Debug("disabled by configuration, not starting")
		return nil
	}
	if !isTerminal(cmd.OutOrStdout()) {
		cfg.Color = false
	}

	ev, err := host.New(cfg.Language, host.Options{Stdout: cmd.OutOrStdout()})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Only echo prompts when a person is typing
	var prompt io.Writer
	if isTerminal(cmd.InOrStdin()) {
		prompt = cmd.OutOrStdout()
		fmt.Fprintln(cmd.OutOrStdout(), version.Banner(ev.Language()))
	}

	_, err = session.Start(ctx, session.Options{
		Evaluator: ev,
		Input:     session.NewReaderInput(cmd.InOrStdin(), prompt),
		Output:    cmd.OutOrStdout(),
		Config:    cfg,
		Logger:    logger,
	})
	return err
}

// loadConfig layers the config file, the environment and flags.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	cfg, err = cfg.WithEnv(os.LookupEnv)
	if err != nil {
		return cfg, err
	}

	if lang != "" {
		cfg.Language = lang
	}
	if memorySize > 0 {
		cfg.MemorySize = memorySize
	}
	if noRC {
		cfg.ShouldLoadRC = false
	}
	if noLocalRC {
		cfg.ShouldLoadLocalRC = false
	}
	if noColor {
		cfg.Color = false
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	language, err := host.ValidateLanguage(cfg.Language)
	if err != nil {
		return cfg, err
	}
	cfg.Language = string(language)
	return cfg, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit *evaluator.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, evaluator.ErrTerminated) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
