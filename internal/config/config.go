// Package config 加载检查工具的配置：YAML文件、PCDENSITY_环境变量与命令行参数
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wgdzlh/pcdensity/density"

	"github.com/spf13/viper"
)

const envPrefix = "PCDENSITY"

const (
	BackendNative = "native"
	BackendPDAL   = "pdal"
)

type Config struct {
	Check   CheckConfig   `mapstructure:"check"`
	Backend BackendConfig `mapstructure:"backend"`
	Output  OutputConfig  `mapstructure:"output"`
	Log     LogConfig     `mapstructure:"log"`
	Publish PublishConfig `mapstructure:"publish"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	TempDir string        `mapstructure:"temp_dir"`
}

type CheckConfig struct {
	MinimumCount           int     `mapstructure:"minimum_count"`
	MinimumCountPercentage float64 `mapstructure:"minimum_count_percentage"`
}

type BackendConfig struct {
	Kind        string `mapstructure:"kind"`
	PdalCommand string `mapstructure:"pdal_command"`
	Stream      bool   `mapstructure:"stream"`
	SourceCRS   string `mapstructure:"source_crs"`
	BatchSize   int    `mapstructure:"batch_size"`
	MaxTiles    int    `mapstructure:"max_tiles"`
}

type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	VectorFormat string `mapstructure:"vector_format"`
	Plot         bool   `mapstructure:"plot"`
	Document     string `mapstructure:"document"` // yaml/json，为空不输出
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// 成果上传至S3兼容存储，Endpoint为空时不上传
type PublishConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// node exporter textfile路径，为空时不输出
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

var (
	ErrBackend  = errors.New("unknown backend")
	ErrDocument = errors.New("unknown document format")
	ErrPublish  = errors.New("publish needs a bucket")
)

func (c *Config) Params() density.CheckParameters {
	return density.CheckParameters{
		MinimumCount:           c.Check.MinimumCount,
		MinimumCountPercentage: c.Check.MinimumCountPercentage,
	}
}

func (c *Config) Validate() (err error) {
	if err = c.Params().Validate(); err != nil {
		return
	}
	switch c.Backend.Kind {
	case BackendNative, BackendPDAL:
	default:
		return fmt.Errorf("%w: %q", ErrBackend, c.Backend.Kind)
	}
	if _, err = density.VectorExt(c.Output.VectorFormat); err != nil {
		return
	}
	switch c.Output.Document {
	case "", "yaml", "json":
	default:
		return fmt.Errorf("%w: %q", ErrDocument, c.Output.Document)
	}
	if c.Publish.Endpoint != "" && c.Publish.Bucket == "" {
		return ErrPublish
	}
	return
}

// 带默认值的viper实例，环境变量如 PCDENSITY_CHECK_MINIMUM_COUNT
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("check.minimum_count", 5)
	v.SetDefault("check.minimum_count_percentage", 95.0)
	v.SetDefault("backend.kind", BackendNative)
	v.SetDefault("backend.pdal_command", "pdal")
	v.SetDefault("backend.stream", true)
	v.SetDefault("backend.source_crs", "")
	v.SetDefault("backend.batch_size", density.DefaultBatchSize)
	v.SetDefault("backend.max_tiles", density.DefaultMaxTiles)
	v.SetDefault("output.dir", "")
	v.SetDefault("output.vector_format", density.VectorFormatGPKG)
	v.SetDefault("output.plot", false)
	v.SetDefault("output.document", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.access_key", "")
	v.SetDefault("publish.secret_key", "")
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.region", "")
	v.SetDefault("publish.prefix", "")
	v.SetDefault("publish.use_ssl", true)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("temp_dir", "")
	return v
}

// 读取配置文件（可为空），合并环境变量与已绑定的命令行参数后校验
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}
