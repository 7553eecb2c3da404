// Package submit 定义指标提交边界：指标类型枚举、指标值对象、服务检查状态，
// 以及按指标类型分发到 Sender 对应入口的固定映射表。
package submit

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 指标提交类型（封闭枚举）
type Kind int

const (
	Gauge Kind = iota
	Count
	MonotonicCount
	Rate
	Histogram
)

var kindNames = [...]string{
	Gauge:          "gauge",
	Count:          "count",
	MonotonicCount: "monotonic_count",
	Rate:           "rate",
	Histogram:      "histogram",
}

// ErrUnknownKind 指标类型不在已知提交类型之内
var ErrUnknownKind = errors.New("unknown metric kind")

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind 将 "gauge"、"monotonic_count" 等名称解析为 Kind
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Metric 一次指标观测值，tags 为有序的 "key:value" 标签
type Metric struct {
	Name  string
	Kind  Kind
	Value float64
	Tags  []string
}

// ServiceCheckStatus 服务检查状态
type ServiceCheckStatus int

const (
	StatusOK ServiceCheckStatus = iota
	StatusWarning
	StatusCritical
	StatusUnknown
)

func (s ServiceCheckStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Sender 指标提交后端（每种指标类型一个入口，外加服务检查）
type Sender interface {
	Gauge(name string, value float64, tags []string)
	Count(name string, value float64, tags []string)
	MonotonicCount(name string, value float64, tags []string)
	Rate(name string, value float64, tags []string)
	Histogram(name string, value float64, tags []string)
	ServiceCheck(name string, status ServiceCheckStatus, tags []string)
}

// submitters 指标类型 → Sender 入口的固定映射
var submitters = map[Kind]func(Sender, string, float64, []string){
	Gauge:          Sender.Gauge,
	Count:          Sender.Count,
	MonotonicCount: Sender.MonotonicCount,
	Rate:           Sender.Rate,
	Histogram:      Sender.Histogram,
}

// Submit 按指标声明的类型提交到 sender；未知类型返回 ErrUnknownKind
func Submit(s Sender, m Metric) error {
	fn, ok := submitters[m.Kind]
	if !ok {
		return fmt.Errorf("submit %s: %w: %s", m.Name, ErrUnknownKind, m.Kind)
	}
	fn(s, m.Name, m.Value, m.Tags)
	return nil
}
