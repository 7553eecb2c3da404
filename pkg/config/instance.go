package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// DefaultPort RethinkDB 客户端驱动端口
const DefaultPort = 28015

// InstanceConfig 单个 RethinkDB 实例配置（对应 instances 列表中的一项）
type InstanceConfig struct {
	Name           string        `yaml:"name" mapstructure:"name" comment:"实例名称，缺省为 host:port"`
	Host           string        `yaml:"host" mapstructure:"host" validate:"required" comment:"服务地址"`
	Port           int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535" comment:"驱动端口" default:"28015"`
	Username       string        `yaml:"username" mapstructure:"username" comment:"用户名"`
	Password       string        `yaml:"password" mapstructure:"password" comment:"密码"`
	TLSCACert      string        `yaml:"tls_ca_cert" mapstructure:"tls_ca_cert" validate:"omitempty,file" comment:"CA 证书路径，设置后启用 TLS"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout" validate:"gte=0" comment:"建连超时" default:"5s"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gte=0" comment:"读超时" default:"10s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gte=0" comment:"写超时" default:"10s"`
	Tags           []string      `yaml:"tags" mapstructure:"tags" comment:"附加到所有指标和服务检查的标签（key:value）"`
}

// ParseInstance 将原始实例参数解码为 InstanceConfig，并补齐缺省值
func ParseInstance(raw map[string]any) (InstanceConfig, error) {
	inst := InstanceConfig{
		Port:           DefaultPort,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &inst,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       decodeHook(),
	})
	if err != nil {
		return InstanceConfig{}, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return InstanceConfig{}, fmt.Errorf("decode instance: %w", err)
	}
	inst.Host = strings.TrimSpace(inst.Host)
	if inst.Name == "" && inst.Host != "" {
		inst.Name = inst.Address()
	}
	return inst, nil
}

// Address 返回 host:port
func (i *InstanceConfig) Address() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// Validate 实例配置校验
func (i *InstanceConfig) Validate() error {
	if err := valid.Struct(i); err != nil {
		return fmt.Errorf("instance %q: %w", i.Name, err)
	}
	for _, tag := range i.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("instance %q: tags cannot contain empty string", i.Name)
		}
	}
	return nil
}

// 校验至少配置一个实例，且实例名称不重复
func validateInstances(instances []InstanceConfig) error {
	if len(instances) == 0 {
		return fmt.Errorf("at least one rethinkdb instance must be configured")
	}
	seen := map[string]bool{}
	for idx := range instances {
		inst := &instances[idx]
		if err := inst.Validate(); err != nil {
			return err
		}
		if seen[inst.Name] {
			return fmt.Errorf("instances contains duplicate name: %q", inst.Name)
		}
		seen[inst.Name] = true
	}
	return nil
}
