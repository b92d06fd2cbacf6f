package config

// Config represents the complete configuration for the bargo application.
// It covers all commands (decode, batch, pdf, serve) and supports loading
// from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Decode pipeline settings
	Decode DecodeConfig `mapstructure:"decode" yaml:"decode" json:"decode"`

	// External ZXing engine settings
	Zxing ZxingConfig `mapstructure:"zxing" yaml:"zxing" json:"zxing"`

	// Output settings
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server settings (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing settings
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// PDF processing settings
	PDF PDFConfig `mapstructure:"pdf" yaml:"pdf" json:"pdf"`
}

// DecodeConfig contains decode pipeline settings.
type DecodeConfig struct {
	Variants  []string `mapstructure:"variants" yaml:"variants" json:"variants"`
	Formats   []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	Multi     bool     `mapstructure:"multi" yaml:"multi" json:"multi"`
}

// ZxingConfig contains settings for the containerized ZXing engine.
type ZxingConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ContainerTool string `mapstructure:"container_tool" yaml:"container_tool" json:"container_tool"`
	Image         string `mapstructure:"image" yaml:"image" json:"image"`
	Workdir       string `mapstructure:"workdir" yaml:"workdir" json:"workdir"`
	TimeoutSec    int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format          string `mapstructure:"format" yaml:"format" json:"format"`
	File            string `mapstructure:"file" yaml:"file" json:"file"`
	Annotate        bool   `mapstructure:"annotate" yaml:"annotate" json:"annotate"`
	AnnotateDir     string `mapstructure:"annotate_dir" yaml:"annotate_dir" json:"annotate_dir"`
	LineColor       string `mapstructure:"line_color" yaml:"line_color" json:"line_color"`
	SaveVariantsDir string `mapstructure:"save_variants_dir" yaml:"save_variants_dir" json:"save_variants_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min" json:"rate_limit_per_min"`
	OverlayEnabled  bool   `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// PDFConfig contains PDF processing settings.
type PDFConfig struct {
	Pages         string `mapstructure:"pages" yaml:"pages" json:"pages"`
	Password      string `mapstructure:"password" yaml:"password" json:"password"`
	OwnerPassword string `mapstructure:"owner_password" yaml:"owner_password" json:"owner_password"`
	Workers       int    `mapstructure:"workers" yaml:"workers" json:"workers"`
}
