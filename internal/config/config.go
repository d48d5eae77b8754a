package config

import (
	"fmt"
	"time"

	"github.com/airtrail/airtrail/internal/feature"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "airtrail.cfg.json"

var validate = validator.New(validator.WithRequiredStructEnabled())

// SourceConfig holds snapshot source settings
type SourceConfig struct {
	URL        string        `json:"url" mapstructure:"url" validate:"required,url"`
	Interval   time.Duration `json:"interval" mapstructure:"interval" validate:"gt=0"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout" validate:"gt=0"`
	Projection string        `json:"projection" mapstructure:"projection" validate:"oneof=epsg3857 none"`
}

// EngineConfig holds animation settings
type EngineConfig struct {
	Steps         int           `json:"steps" mapstructure:"steps" validate:"gt=0"`
	FrameInterval time.Duration `json:"frameInterval" mapstructure:"frameInterval" validate:"gt=0"`
}

// MemoryConfig holds in-memory render sink settings
type MemoryConfig struct {
	HistorySize int `json:"historySize" mapstructure:"historySize" validate:"gte=0"`
}

// WebSocketConfig holds WebSocket render sink settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url" validate:"required,url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// SinkConfig holds render sink settings
type SinkConfig struct {
	Type      string          `json:"type" mapstructure:"type" validate:"oneof=memory websocket"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName" validate:"required"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout" validate:"gt=0"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host" validate:"required"`
	Port     string `json:"port" mapstructure:"port" validate:"required,numeric"`
	Protocol string `json:"protocol" mapstructure:"protocol" validate:"oneof=http https"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org" validate:"required"`
	Bucket   string `json:"bucket" mapstructure:"bucket" validate:"required"`
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address" validate:"required,hostname_port"`
}

// MonitorConfig holds status monitor settings
type MonitorConfig struct {
	Interval time.Duration `json:"interval" mapstructure:"interval" validate:"gt=0"`
}

// RegisterFlags adds the command line flags and binds them into viper.
func RegisterFlags(fs *pflag.FlagSet) error {
	fs.String("config", ".", "directory containing "+FileName)
	fs.String("logLevel", "info", "log level (debug, info, warn, error)")
	fs.String("sink.type", "memory", "render sink (memory, websocket)")
	if err := viper.BindPFlags(fs); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./airtraillogs")

	viper.SetDefault("source.url", "http://127.0.0.1:8000/flights/")
	viper.SetDefault("source.interval", "1s")
	viper.SetDefault("source.timeout", "5s")
	viper.SetDefault("source.projection", "epsg3857")

	viper.SetDefault("engine.steps", 50)
	viper.SetDefault("engine.frameInterval", "20ms")

	viper.SetDefault("sink.type", "memory")
	viper.SetDefault("sink.memory.historySize", 500)
	viper.SetDefault("sink.websocket.url", "ws://localhost:5000/render")
	viper.SetDefault("sink.websocket.secret", "")

	style := feature.DefaultStyle()
	viper.SetDefault("style.icon", style.Icon)
	viper.SetDefault("style.iconUrl", style.IconURL)
	viper.SetDefault("style.highlightIcon", style.HighlightIcon)
	viper.SetDefault("style.highlightIconUrl", style.HighlightIconURL)
	viper.SetDefault("style.iconSize", style.IconSize)
	viper.SetDefault("style.iconAnchor", style.IconAnchor)
	viper.SetDefault("style.iconAllowOverlap", style.IconAllowOverlap)
	viper.SetDefault("style.iconIgnorePlacement", style.IconIgnorePlacement)
	viper.SetDefault("style.trailWidth", style.TrailWidth)
	viper.SetDefault("style.trailColor", style.TrailColor)
	viper.SetDefault("style.center", []float64{style.Center[0], style.Center[1]})
	viper.SetDefault("style.zoom", style.Zoom)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "airtrail")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "airtrail")
	viper.SetDefault("influx.bucket", "airtrail_performance")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("monitor.interval", "5s")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSourceConfig returns the validated snapshot source settings.
func GetSourceConfig() (SourceConfig, error) {
	cfg := SourceConfig{
		URL:        viper.GetString("source.url"),
		Interval:   viper.GetDuration("source.interval"),
		Timeout:    viper.GetDuration("source.timeout"),
		Projection: viper.GetString("source.projection"),
	}
	return cfg, check("source", cfg)
}

// GetEngineConfig returns the validated animation settings.
func GetEngineConfig() (EngineConfig, error) {
	cfg := EngineConfig{
		Steps:         viper.GetInt("engine.steps"),
		FrameInterval: viper.GetDuration("engine.frameInterval"),
	}
	return cfg, check("engine", cfg)
}

// GetSinkConfig returns the validated render sink settings.
func GetSinkConfig() (SinkConfig, error) {
	cfg := SinkConfig{
		Type: viper.GetString("sink.type"),
		Memory: MemoryConfig{
			HistorySize: viper.GetInt("sink.memory.historySize"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("sink.websocket.url"),
			Secret: viper.GetString("sink.websocket.secret"),
		},
	}
	return cfg, check("sink", cfg)
}

// GetStyle returns the validated renderer style.
func GetStyle() (feature.Style, error) {
	style := feature.DefaultStyle()
	if err := viper.UnmarshalKey("style", &style); err != nil {
		return feature.Style{}, fmt.Errorf("invalid style config: %w", err)
	}
	return style, check("style", style)
}

// GetOTelConfig returns the validated OpenTelemetry settings.
func GetOTelConfig() (OTelConfig, error) {
	cfg := OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
	return cfg, check("otel", cfg)
}

// GetInfluxConfig returns the validated InfluxDB settings.
func GetInfluxConfig() (InfluxConfig, error) {
	cfg := InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
	return cfg, check("influx", cfg)
}

// GetGraylogConfig returns the validated GELF settings.
func GetGraylogConfig() (GraylogConfig, error) {
	cfg := GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
	return cfg, check("graylog", cfg)
}

// GetMonitorConfig returns the validated monitor settings.
func GetMonitorConfig() (MonitorConfig, error) {
	cfg := MonitorConfig{
		Interval: viper.GetDuration("monitor.interval"),
	}
	return cfg, check("monitor", cfg)
}

func check(section string, cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid %s config: %w", section, err)
	}
	return nil
}
