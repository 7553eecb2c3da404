package metrics

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rethinkdb-collector/pkg/logger"
	"github.com/rethinkdb-collector/pkg/submit"
)

// InstanceLabel 实例视图附加的标签名
const InstanceLabel = "instance"

// ServiceCheckResult 最近一次服务检查结果
type ServiceCheckResult struct {
	Check    string    `json:"check"`
	Instance string    `json:"instance"`
	Status   string    `json:"status"`
	Tags     []string  `json:"tags"`
	Time     time.Time `json:"time"`
	statusV  submit.ServiceCheckStatus
}

// OK 服务检查是否为 OK
func (r ServiceCheckResult) OK() bool { return r.statusV == submit.StatusOK }

// family 同名指标的一组 Vec，标签键在首次提交时固定
type family struct {
	kind   submit.Kind
	labels []string
	gauge  *prometheus.GaugeVec
	count  *prometheus.CounterVec
	hist   *prometheus.HistogramVec
}

// sample 单调计数 / 速率的上一次原始值
type sample struct {
	value float64
	at    time.Time
}

// series 实例周期内提交过的一条 Gauge 序列
type series struct {
	fam    *family
	values []string
}

// Sink 把检查提交的指标转换为 Prometheus 指标
type Sink struct {
	factory *MetricFactory
	dropped *prometheus.CounterVec
	status  *prometheus.GaugeVec
	now     func() time.Time

	mu       sync.Mutex
	families map[string]*family
	previous map[string]sample
	checks   map[string]ServiceCheckResult
	tagKeys  []string                     // 实例配置标签的键并集，缺失时补空值
	live     map[string]map[string]series // instance -> 上一周期导出的 Gauge 序列
	cycle    map[string]map[string]series // instance -> 当前周期已提交的 Gauge 序列
}

// NewSink 创建 Sink
func NewSink(reg Registers) (*Sink, error) {
	f := NewMetricFactory(reg)
	status, err := f.NewGaugeVec("service_check_status",
		"Latest service check status (0=OK 1=WARNING 2=CRITICAL 3=UNKNOWN)",
		[]string{"check", InstanceLabel})
	if err != nil {
		return nil, fmt.Errorf("register service_check_status: %w", err)
	}
	return &Sink{
		factory:  f,
		dropped:  f.NewAgentSubmitDroppedTotal(),
		status:   status,
		now:      time.Now,
		families: map[string]*family{},
		previous: map[string]sample{},
		checks:   map[string]ServiceCheckResult{},
		live:     map[string]map[string]series{},
		cycle:    map[string]map[string]series{},
	}, nil
}

// ForInstance 返回带 instance 标签的视图，供单个实例的检查使用
func (s *Sink) ForInstance(name string) *InstanceSender {
	return &InstanceSender{sink: s, instance: name}
}

// ReserveTagKeys 预留实例配置标签的键。实例提交时缺少的键补空值，
// 使配置了不同标签的实例共享同一组标签维度；需在首次提交前调用
func (s *Sink) ReserveTagKeys(tags []string) {
	keys, _ := tagLabels(tags)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if !slices.Contains(s.tagKeys, k) {
			s.tagKeys = append(s.tagKeys, k)
		}
	}
	sort.Strings(s.tagKeys)
}

// ServiceChecks 返回所有实例最近一次服务检查结果（按实例名排序）
func (s *Sink) ServiceChecks() []ServiceCheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ServiceCheckResult, 0, len(s.checks))
	for _, r := range s.checks {
		r.Tags = slices.Clone(r.Tags)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Instance != out[j].Instance {
			return out[i].Instance < out[j].Instance
		}
		return out[i].Check < out[j].Check
	})
	return out
}

func (s *Sink) Gauge(name string, value float64, tags []string) {
	s.observe(submit.Gauge, name, value, tags, "")
}

func (s *Sink) Count(name string, value float64, tags []string) {
	s.observe(submit.Count, name, value, tags, "")
}

func (s *Sink) MonotonicCount(name string, value float64, tags []string) {
	s.observe(submit.MonotonicCount, name, value, tags, "")
}

func (s *Sink) Rate(name string, value float64, tags []string) {
	s.observe(submit.Rate, name, value, tags, "")
}

func (s *Sink) Histogram(name string, value float64, tags []string) {
	s.observe(submit.Histogram, name, value, tags, "")
}

func (s *Sink) ServiceCheck(name string, status submit.ServiceCheckStatus, tags []string) {
	s.serviceCheck(name, status, tags, "")
}

func (s *Sink) serviceCheck(name string, status submit.ServiceCheckStatus, tags []string, instance string) {
	s.status.WithLabelValues(name, instance).Set(float64(status))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[instance+"\x00"+name] = ServiceCheckResult{
		Check:    name,
		Instance: instance,
		Status:   status.String(),
		Tags:     slices.Clone(tags),
		Time:     s.now(),
		statusV:  status,
	}
}

func (s *Sink) observe(kind submit.Kind, name string, value float64, tags []string, instance string) {
	keys, values := tagLabels(tags)
	metricName := SanitizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if instance != "" {
		keys, values = padLabels(keys, values, s.tagKeys)
		keys = append(keys, InstanceLabel)
		values = append(values, instance)
	}

	fam, err := s.family(kind, metricName, keys)
	if err != nil {
		s.drop("register", metricName, err)
		return
	}
	if fam.kind != kind || !slices.Equal(fam.labels, keys) {
		s.drop("mismatch", metricName, fmt.Errorf("family registered as %s %v, got %s %v", fam.kind, fam.labels, kind, keys))
		return
	}

	if kind == submit.Gauge || kind == submit.Rate {
		s.track(instance, fam, metricName, values)
	}

	switch kind {
	case submit.Gauge:
		fam.gauge.WithLabelValues(values...).Set(value)
	case submit.Count:
		if value < 0 {
			s.drop("negative", metricName, fmt.Errorf("count value %v is negative", value))
			return
		}
		fam.count.WithLabelValues(values...).Add(value)
	case submit.MonotonicCount:
		key := seriesKey(metricName, values)
		prev, seen := s.previous[key]
		s.previous[key] = sample{value: value, at: s.now()}
		// 首次采样或计数器重置时只记录原始值
		if !seen || value < prev.value {
			return
		}
		fam.count.WithLabelValues(values...).Add(value - prev.value)
	case submit.Rate:
		key := seriesKey(metricName, values)
		now := s.now()
		prev, seen := s.previous[key]
		s.previous[key] = sample{value: value, at: now}
		elapsed := now.Sub(prev.at).Seconds()
		if !seen || elapsed <= 0 || value < prev.value {
			return
		}
		fam.gauge.WithLabelValues(values...).Set((value - prev.value) / elapsed)
	case submit.Histogram:
		fam.hist.WithLabelValues(values...).Observe(value)
	}
}

// family 获取或创建指标族，调用方持有 s.mu
func (s *Sink) family(kind submit.Kind, name string, keys []string) (*family, error) {
	if fam, ok := s.families[name]; ok {
		return fam, nil
	}
	fam := &family{kind: kind, labels: slices.Clone(keys)}
	help := fmt.Sprintf("RethinkDB %s submitted as %s", name, kind)
	var err error
	switch kind {
	case submit.Gauge, submit.Rate:
		fam.gauge, err = s.factory.NewGaugeVec(name, help, keys)
	case submit.Count, submit.MonotonicCount:
		fam.count, err = s.factory.NewCounterVec(name, help, keys)
	case submit.Histogram:
		fam.hist, err = s.factory.NewHistogramVec(name, help, keys)
	default:
		err = fmt.Errorf("%w: %s", submit.ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, err
	}
	s.families[name] = fam
	return fam, nil
}

// track 记录当前周期提交过的 Gauge 序列，调用方持有 s.mu
func (s *Sink) track(instance string, fam *family, name string, values []string) {
	seen, ok := s.cycle[instance]
	if !ok {
		return
	}
	seen[seriesKey(name, values)] = series{fam: fam, values: slices.Clone(values)}
}

func (s *Sink) beginCycle(instance string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycle[instance] = map[string]series{}
}

// endCycle 删除上一周期导出、本周期未再提交的 Gauge 序列并返回删除数。
// 计数器与单调计数 / 速率的基线保留
func (s *Sink) endCycle(instance string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen, ok := s.cycle[instance]
	if !ok {
		return 0
	}
	delete(s.cycle, instance)

	removed := 0
	for key, ser := range s.live[instance] {
		if _, ok := seen[key]; ok {
			continue
		}
		if ser.fam.gauge.DeleteLabelValues(ser.values...) {
			removed++
		}
	}
	s.live[instance] = seen
	return removed
}

func (s *Sink) drop(reason, name string, err error) {
	s.dropped.WithLabelValues(reason).Inc()
	logger.Warn("drop metric submission",
		zap.String("metric", name),
		zap.String("reason", reason),
		zap.Error(err))
}

// InstanceSender 为 Sink 附加 instance 标签。
// BeginCycle / EndCycle 之间提交的 Gauge 序列替换该实例上一周期的序列
type InstanceSender struct {
	sink     *Sink
	instance string
}

// BeginCycle 开始一个采集周期
func (i *InstanceSender) BeginCycle() { i.sink.beginCycle(i.instance) }

// EndCycle 结束采集周期，删除本周期未提交的 Gauge 序列
func (i *InstanceSender) EndCycle() {
	if removed := i.sink.endCycle(i.instance); removed > 0 {
		logger.Debug("removed stale series",
			zap.String("instance", i.instance),
			zap.Int("count", removed))
	}
}

func (i *InstanceSender) Gauge(name string, value float64, tags []string) {
	i.sink.observe(submit.Gauge, name, value, tags, i.instance)
}

func (i *InstanceSender) Count(name string, value float64, tags []string) {
	i.sink.observe(submit.Count, name, value, tags, i.instance)
}

func (i *InstanceSender) MonotonicCount(name string, value float64, tags []string) {
	i.sink.observe(submit.MonotonicCount, name, value, tags, i.instance)
}

func (i *InstanceSender) Rate(name string, value float64, tags []string) {
	i.sink.observe(submit.Rate, name, value, tags, i.instance)
}

func (i *InstanceSender) Histogram(name string, value float64, tags []string) {
	i.sink.observe(submit.Histogram, name, value, tags, i.instance)
}

func (i *InstanceSender) ServiceCheck(name string, status submit.ServiceCheckStatus, tags []string) {
	i.sink.serviceCheck(name, status, tags, i.instance)
}

// SanitizeName 将 "rethinkdb.stats.cluster.queries_per_sec" 转换为合法的 Prometheus 指标名
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// sanitizeLabel 标签名不允许出现 ':'
func sanitizeLabel(key string) string {
	return strings.ReplaceAll(SanitizeName(key), ":", "_")
}

// tagLabels 将 "k:v" 标签转换为按键排序的标签键值；重复键保留第一次出现的值
func tagLabels(tags []string) ([]string, []string) {
	pairs := map[string]string{}
	for _, tag := range tags {
		k, v, _ := strings.Cut(tag, ":")
		k = sanitizeLabel(k)
		if k == InstanceLabel {
			k = "tag_" + k
		}
		if _, ok := pairs[k]; ok {
			continue
		}
		pairs[k] = v
	}
	return sortedPairs(pairs)
}

// padLabels 为缺少的预留键补空值
func padLabels(keys, values, reserved []string) ([]string, []string) {
	missing := false
	for _, k := range reserved {
		if !slices.Contains(keys, k) {
			missing = true
			break
		}
	}
	if !missing {
		return keys, values
	}
	pairs := make(map[string]string, len(keys)+len(reserved))
	for _, k := range reserved {
		pairs[k] = ""
	}
	for i, k := range keys {
		pairs[k] = values[i]
	}
	return sortedPairs(pairs)
}

func sortedPairs(pairs map[string]string) ([]string, []string) {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = pairs[k]
	}
	return keys, values
}

func seriesKey(name string, values []string) string {
	return name + "\x00" + strings.Join(values, "\x00")
}
