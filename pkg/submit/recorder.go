package submit

import "sync"

// ServiceCheck 一次服务检查提交记录
type ServiceCheck struct {
	Name   string
	Status ServiceCheckStatus
	Tags   []string
}

// Recorder 内存 Sender，按提交顺序保存所有指标和服务检查
type Recorder struct {
	mu            sync.Mutex
	metrics       []Metric
	serviceChecks []ServiceCheck
}

// NewRecorder 创建空 Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(kind Kind, name string, value float64, tags []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, Metric{Name: name, Kind: kind, Value: value, Tags: cloneTags(tags)})
}

func (r *Recorder) Gauge(name string, value float64, tags []string) {
	r.record(Gauge, name, value, tags)
}

func (r *Recorder) Count(name string, value float64, tags []string) {
	r.record(Count, name, value, tags)
}

func (r *Recorder) MonotonicCount(name string, value float64, tags []string) {
	r.record(MonotonicCount, name, value, tags)
}

func (r *Recorder) Rate(name string, value float64, tags []string) {
	r.record(Rate, name, value, tags)
}

func (r *Recorder) Histogram(name string, value float64, tags []string) {
	r.record(Histogram, name, value, tags)
}

func (r *Recorder) ServiceCheck(name string, status ServiceCheckStatus, tags []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serviceChecks = append(r.serviceChecks, ServiceCheck{Name: name, Status: status, Tags: cloneTags(tags)})
}

// Metrics 返回已记录指标的副本
func (r *Recorder) Metrics() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// ServiceChecks 返回已记录服务检查的副本
func (r *Recorder) ServiceChecks() []ServiceCheck {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ServiceCheck, len(r.serviceChecks))
	copy(out, r.serviceChecks)
	return out
}

// Reset 清空记录
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = nil
	r.serviceChecks = nil
}

// cloneTags 复制标签，nil 保持为空切片，便于比较
func cloneTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
