package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/morpho/internal/config"
	"github.com/MeKo-Tech/morpho/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// viperKey is the flag annotation naming the configuration key a flag
// overrides. Annotated flags are bound right before the configuration is
// loaded, so every command tree keeps its own bindings.
const viperKey = "morpho_viper_key"

// skipConfig marks commands that must run even with a broken config file.
const skipConfig = "morpho_skip_config"

// cli holds the state shared by one command tree.
type cli struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
	logFile io.Closer
}

// Execute runs the morpho command line and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns a fresh command tree for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return NewRootCommand()
}

// NewRootCommand builds the morpho command tree with its own configuration
// loader.
func NewRootCommand() *cobra.Command {
	c := &cli{loader: config.NewLoaderWithViper(viper.New())}

	root := &cobra.Command{
		Use:   "morpho",
		Short: "Feature-line image morphing",
		Long: `morpho blends a source image into a destination image with the
Beier-Neely field morphing algorithm. Corresponding feature lines drawn on
both images steer the warp, and the intermediate frames cross-fade the two
warped images.

This tool provides:
- Single morphs with PNG, JPEG, GIF or PDF output
- Batch processing driven by manifests or job directories
- An HTTP and WebSocket API with Prometheus metrics

Examples:
  morpho morph face-a.png face-b.png --pairs lines.yaml --frames 10
  morpho morph a.jpg b.jpg -p lines.yaml --format gif --out anim
  morpho batch jobs.yaml --workers 4
  morpho serve --port 8080
  morpho bench a.png b.png -p lines.yaml --iterations 5`,
		Version:            version.String(),
		SilenceUsage:       true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetVersionTemplate("morpho version {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/morpho, /etc/morpho)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "write logs to this file with rotation instead of stderr")
	bindFlag(pf, "verbose", "verbose")
	bindFlag(pf, "log-level", "log_level")
	bindFlag(pf, "log-file", "log.file")

	root.AddCommand(
		newMorphCommand(c),
		newBatchCommand(c),
		newServeCommand(c),
		newBenchCommand(c),
		newConfigCommand(c),
		newVersionCommand(),
	)
	return root
}

// bindFlag records the configuration key that the named flag overrides.
func bindFlag(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, viperKey, []string{key}); err != nil {
		panic(fmt.Sprintf("annotate flag %s: %v", name, err))
	}
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfig] == "true" {
		d := config.DefaultConfig()
		c.cfg = &d
		c.setupLogging(cmd)
		return nil
	}

	v := c.loader.GetViper()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[viperKey]
		if len(keys) == 0 {
			return
		}
		if err := v.BindPFlag(keys[0], f); err != nil {
			bindErr = errors.Join(bindErr, err)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	var err error
	if c.cfgFile != "" {
		c.cfg, err = c.loader.LoadWithFile(c.cfgFile)
	} else {
		c.cfg, err = c.loader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	c.setupLogging(cmd)
	slog.Debug("configuration loaded", "file", c.loader.GetConfigFileUsed(), "command", cmd.CommandPath())
	return nil
}

// setupLogging installs a JSON slog handler on stderr or on a rotating file.
func (c *cli) setupLogging(cmd *cobra.Command) {
	level := slog.LevelInfo
	if c.cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch c.cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	var w io.Writer = cmd.ErrOrStderr()
	if c.cfg.Log.File != "" {
		lj := &lumberjack.Logger{
			Filename:   c.cfg.Log.File,
			MaxSize:    c.cfg.Log.MaxSizeMB,
			MaxBackups: c.cfg.Log.MaxBackups,
			MaxAge:     c.cfg.Log.MaxAgeDays,
			Compress:   c.cfg.Log.Compress,
		}
		w = lj
		c.logFile = lj
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

func (c *cli) teardown(*cobra.Command, []string) error {
	if c.logFile == nil {
		return nil
	}
	err := c.logFile.Close()
	c.logFile = nil
	return err
}

// config returns the loaded configuration. Commands only run after setup.
func (c *cli) config() *config.Config {
	if c.cfg == nil {
		d := config.DefaultConfig()
		c.cfg = &d
	}
	return c.cfg
}
