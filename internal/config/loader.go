package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name of configuration files, without extension.
	ConfigFileName = "morpho"

	// EnvPrefix prefixes every environment variable, e.g. MORPHO_MORPH_FRAMES.
	EnvPrefix = "MORPHO"
)

// Loader reads configuration from files, the environment and bound flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader on the global viper instance, which is where
// the CLI binds its flags.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper returns a loader on an isolated viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load searches the standard locations for morpho.yaml. A missing file is
// not an error.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile reads the given file, or searches like Load when configFile
// is empty.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation is LoadWithFile without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the file the last load read, if any.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper exposes the underlying instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so that environment variables are picked
// up by Unmarshal even when no file mentions them.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("log.file", d.Log.File)
	l.v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	l.v.SetDefault("log.max_backups", d.Log.MaxBackups)
	l.v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	l.v.SetDefault("log.compress", d.Log.Compress)

	l.v.SetDefault("morph.frames", d.Morph.Frames)
	l.v.SetDefault("morph.parallel", d.Morph.Parallel)
	l.v.SetDefault("morph.tile_rows", d.Morph.TileRows)
	l.v.SetDefault("morph.tile_cols", d.Morph.TileCols)
	l.v.SetDefault("morph.frame_workers", d.Morph.FrameWorkers)
	l.v.SetDefault("morph.easing", d.Morph.Easing)
	l.v.SetDefault("morph.max_image_size", d.Morph.MaxImageSize)
	l.v.SetDefault("morph.weights.p", d.Morph.Weights.P)
	l.v.SetDefault("morph.weights.a", d.Morph.Weights.A)
	l.v.SetDefault("morph.weights.b", d.Morph.Weights.B)

	l.v.SetDefault("output.dir", d.Output.Dir)
	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.prefix", d.Output.Prefix)
	l.v.SetDefault("output.gif_delay_ms", d.Output.GIFDelayMS)
	l.v.SetDefault("output.overlay_lines", d.Output.OverlayLines)
	l.v.SetDefault("output.overlay_color", d.Output.OverlayColor)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.max_frames", d.Server.MaxFrames)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.continue_on_error", d.Batch.ContinueOnError)
}

// GenerateDefaultConfigFile writes the defaults to filename (morpho.yaml
// when empty).
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()
	return loader.v.WriteConfigAs(filename)
}

// GetConfigSearchPaths lists the directories searched for morpho.yaml, in
// order.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if dir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(dir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	return append(paths, "/etc/"+ConfigFileName)
}
