//nolint:lll
package config

// Config is the complete morpho configuration. It is read from a YAML file,
// MORPHO_* environment variables and command-line flags, in increasing order
// of precedence.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Log file rotation; an empty path logs to stdout.
	Log LogConfig `mapstructure:"log" yaml:"log" json:"log"`

	Morph  MorphConfig  `mapstructure:"morph" yaml:"morph" json:"morph"`
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
	Batch  BatchConfig  `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// LogConfig configures the rotating log file.
type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress" json:"compress"`
}

// MorphConfig holds the engine settings.
type MorphConfig struct {
	Frames       int           `mapstructure:"frames" yaml:"frames" json:"frames"`
	Parallel     bool          `mapstructure:"parallel" yaml:"parallel" json:"parallel"`
	TileRows     int           `mapstructure:"tile_rows" yaml:"tile_rows" json:"tile_rows"`
	TileCols     int           `mapstructure:"tile_cols" yaml:"tile_cols" json:"tile_cols"`
	FrameWorkers int           `mapstructure:"frame_workers" yaml:"frame_workers" json:"frame_workers"`
	Easing       string        `mapstructure:"easing" yaml:"easing" json:"easing"`
	MaxImageSize int           `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	Weights      WeightsConfig `mapstructure:"weights" yaml:"weights" json:"weights"`
}

// WeightsConfig mirrors the line weight formula (length^p / (a + d))^b.
type WeightsConfig struct {
	P float64 `mapstructure:"p" yaml:"p" json:"p"`
	A float64 `mapstructure:"a" yaml:"a" json:"a"`
	B float64 `mapstructure:"b" yaml:"b" json:"b"`
}

// OutputConfig controls how frames are written.
type OutputConfig struct {
	Dir          string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
	GIFDelayMS   int    `mapstructure:"gif_delay_ms" yaml:"gif_delay_ms" json:"gif_delay_ms"`
	OverlayLines bool   `mapstructure:"overlay_lines" yaml:"overlay_lines" json:"overlay_lines"`
	OverlayColor string `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxFrames       int    `mapstructure:"max_frames" yaml:"max_frames" json:"max_frames"`
}

// BatchConfig configures manifest processing.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}
