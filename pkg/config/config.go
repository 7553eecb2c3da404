package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Server    ServerConfig     `yaml:"server" mapstructure:"server" comment:"HTTP服务配置"`
	Monitor   MonitorConfig    `yaml:"monitor" mapstructure:"monitor" comment:"检查调度配置"`
	Log       ZapLogConfig     `yaml:"log" mapstructure:"log" comment:"日志配置"`
	Instances []InstanceConfig `yaml:"instances" mapstructure:"-" comment:"RethinkDB 实例列表"`
}

// ServerConfig HTTP服务配置（超时统一为time.Duration，支持"30s"解析）
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr" env:"HTTP_ADDR" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" env:"HTTP_READ_TIMEOUT" validate:"required,gt=0" comment:"读取超时时间（如30s）"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" env:"HTTP_WRITE_TIMEOUT" validate:"required,gt=0" comment:"写入超时时间（如30s）"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" validate:"required,gt=0" comment:"空闲连接超时时间（如60s）"`
	// CheckRate /check 端点每秒允许触发的次数
	CheckRate  float64 `yaml:"check_rate" mapstructure:"check_rate" validate:"gt=0" comment:"手动触发检查速率（次/秒）"`
	CheckBurst int     `yaml:"check_burst" mapstructure:"check_burst" validate:"gte=1" comment:"手动触发检查突发上限"`
}

// MonitorConfig 检查调度全局配置
type MonitorConfig struct {
	Interval       time.Duration `yaml:"interval" mapstructure:"interval" env:"MONITOR_INTERVAL" validate:"required,gt=0" comment:"检查间隔（如15s）" default:"15s"`
	ProcessMetrics bool          `yaml:"process_metrics" mapstructure:"process_metrics" env:"MONITOR_PROCESS_METRICS" comment:"是否导出 agent 进程指标" default:"true"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console" comment:"日志格式（json/console）" default:"json"`
	Path      string `yaml:"path" mapstructure:"path" env:"LOG_PATH" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" env:"LOG_MAX_SIZE" validate:"required,gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" env:"LOG_MAX_BACKUP" validate:"gte=0" comment:"日志文件最大备份数（max_age 为 0 时生效）" default:"30"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "0.0.0.0:9091",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			CheckRate:    0.2,
			CheckBurst:   1,
		},
		Monitor: MonitorConfig{
			Interval:       15 * time.Second,
			ProcessMetrics: true,
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "json",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 30,
			MaxAge:    7,
		},
	}
}

// decodeHook 配置解码钩子（time.Duration / 逗号分隔切片）
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// LoadOption 加载配置时的附加调整
type LoadOption func(v *viper.Viper)

// WithInstances 用给定实例列表替换配置文件中的 instances
func WithInstances(instances ...map[string]any) LoadOption {
	return func(v *viper.Viper) {
		raw := make([]any, 0, len(instances))
		for _, inst := range instances {
			raw = append(raw, inst)
		}
		v.Set("instances", raw)
	}
}

// LoadConfigWithCli 加载配置（Flags + YAML + ENV）
func LoadConfigWithCli(cmd *cobra.Command, opts ...LoadOption) (*Config, error) {
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// 3. 绑定环境变量 ENV -> Viper （SERVER_ADDR -> server.addr）
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for _, opt := range opts {
		opt(v)
	}
	return Load(v)
}

// Load 将 viper 中的配置解码为 Config 并校验
func Load(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook:       decodeHook(),
	})
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// instances 逐个解码，缺省值在 ParseInstance 中补齐
	instances, err := parseInstances(v.Get("instances"))
	if err != nil {
		return nil, err
	}
	cfg.Instances = instances

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func parseInstances(raw any) ([]InstanceConfig, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("instances must be a list, got %T", raw)
	}
	out := make([]InstanceConfig, 0, len(list))
	for i, item := range list {
		m, ok := toStringMap(item)
		if !ok {
			return nil, fmt.Errorf("instances[%d] must be a mapping, got %T", i, item)
		}
		inst, err := ParseInstance(m)
		if err != nil {
			return nil, fmt.Errorf("instances[%d]: %w", i, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

func toStringMap(item any) (map[string]any, bool) {
	switch m := item.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	// 	1,校验Server服务配置
	if err := c.Server.Validate(); err != nil {
		return err
	}
	// 	2，校验调度配置
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	// 	3，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return err
	}
	// 	4，校验实例列表
	return validateInstances(c.Instances)
}
