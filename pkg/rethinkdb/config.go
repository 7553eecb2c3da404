package rethinkdb

import (
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/rethinkdb-collector/pkg/config"
)

// Config 单个实例的检查配置，构建后不再修改
type Config struct {
	Instance       string
	Host           string
	Port           int
	Username       string
	Password       string
	TLSCACert      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Tags           []string
	MetricStreams  []MetricStream
}

// NewConfig 由实例配置构建检查配置，指标流使用 DefaultMetricStreams
func NewConfig(inst config.InstanceConfig) *Config {
	return &Config{
		Instance:       inst.Name,
		Host:           inst.Host,
		Port:           inst.Port,
		Username:       inst.Username,
		Password:       inst.Password,
		TLSCACert:      inst.TLSCACert,
		ConnectTimeout: inst.ConnectTimeout,
		ReadTimeout:    inst.ReadTimeout,
		WriteTimeout:   inst.WriteTimeout,
		Tags:           slices.Clone(inst.Tags),
		MetricStreams:  DefaultMetricStreams(),
	}
}

// Address 返回 host:port
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DialOptions 提取建连参数
func (c *Config) DialOptions() DialOptions {
	return DialOptions{
		Address:        c.Address(),
		Username:       c.Username,
		Password:       c.Password,
		TLSCACert:      c.TLSCACert,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
	}
}

// DefaultMetricStreams 默认的指标流列表（按顺序执行）
func DefaultMetricStreams() []MetricStream {
	return []MetricStream{
		ClusterStatistics,
		ServerStatistics,
		TableStatistics,
		ReplicaStatistics,
		ServerStatus,
		TableStatus,
		SystemJobs,
		CurrentIssues,
	}
}
