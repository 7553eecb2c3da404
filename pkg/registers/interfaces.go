package registers

import "context"

// Agent 顶层采集器接口（封装所有采集器的生命周期管理）
// 每个 RethinkDB 实例对应一个 Collector，通过 Agent 注册即可参与定时检查
type Agent interface {
	Register(collector Collector)         // 注册采集器
	Start(ctx context.Context) error      // 启动采集（定时器循环）
	CollectAll(ctx context.Context) error // 立即执行一轮采集
	Shutdown(ctx context.Context) error   // 优雅停止
}

// Collector 采集器核心接口（所有采集器必须实现）
type Collector interface {
	Name() string                      // 采集器名称（唯一标识）
	Init() error                       // 初始化（预检查配置）
	Collect(ctx context.Context) error // 执行一次检查并提交指标
	Close() error                      // 关闭（释放资源）
}
