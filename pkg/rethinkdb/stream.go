package rethinkdb

import (
	"context"
	"fmt"
	"iter"

	r "gopkg.in/rethinkdb/rethinkdb-go.v6"

	"github.com/rethinkdb-collector/pkg/submit"
)

// SystemDB RethinkDB 系统库
const SystemDB = "rethinkdb"

// MetricStream 指标流：给定连接，产生一组惰性、有限、不可重放的指标
type MetricStream func(ctx context.Context, conn Connection) iter.Seq2[submit.Metric, error]

// systemTable 系统表查询
func systemTable(name string) r.Term {
	return r.DB(SystemDB).Table(name)
}

// rows 逐行读取系统表，迭代结束或提前退出时关闭游标
func rows[T any](ctx context.Context, conn Connection, table string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		cursor, err := systemTable(table).Run(conn, r.RunOpts{Context: ctx})
		if err != nil {
			yield(zero, fmt.Errorf("query %s.%s: %w", SystemDB, table, err))
			return
		}
		defer cursor.Close()

		for {
			row := zero
			if !cursor.Next(&row) {
				break
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(zero, fmt.Errorf("read %s.%s: %w", SystemDB, table, err))
		}
	}
}

// rowStream 将系统表每一行映射为若干指标；mapRow 的第二个参数为当前连接的服务器名称
func rowStream[T any](table string, mapRow func(row *T, server string) []submit.Metric) MetricStream {
	return func(ctx context.Context, conn Connection) iter.Seq2[submit.Metric, error] {
		return func(yield func(submit.Metric, error) bool) {
			server, err := conn.Server()
			if err != nil {
				yield(submit.Metric{}, fmt.Errorf("read server identity: %w", err))
				return
			}
			for row, err := range rows[T](ctx, conn, table) {
				if err != nil {
					yield(submit.Metric{}, err)
					return
				}
				for _, m := range mapRow(&row, server.Name) {
					if !yield(m, nil) {
						return
					}
				}
			}
		}
	}
}

func gauge(name string, value float64, tags []string) submit.Metric {
	return submit.Metric{Name: name, Kind: submit.Gauge, Value: value, Tags: tags}
}

func monotonic(name string, value float64, tags []string) submit.Metric {
	return submit.Metric{Name: name, Kind: submit.MonotonicCount, Value: value, Tags: tags}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
