package rethinkdb

import (
	"context"
	"iter"
	"slices"

	"github.com/rethinkdb-collector/pkg/submit"
)

// issueRow rethinkdb.current_issues 表
type issueRow struct {
	Type     string `rethinkdb:"type"`
	Critical bool   `rethinkdb:"critical"`
}

type issueCount struct {
	total    int
	critical int
}

// CurrentIssues 按问题类型汇总当前集群问题数量，读完整张表后按类型名排序输出
func CurrentIssues(ctx context.Context, conn Connection) iter.Seq2[submit.Metric, error] {
	return func(yield func(submit.Metric, error) bool) {
		server, err := conn.Server()
		if err != nil {
			yield(submit.Metric{}, err)
			return
		}
		counts := map[string]*issueCount{}
		for row, err := range rows[issueRow](ctx, conn, "current_issues") {
			if err != nil {
				yield(submit.Metric{}, err)
				return
			}
			c, ok := counts[row.Type]
			if !ok {
				c = &issueCount{}
				counts[row.Type] = c
			}
			c.total++
			if row.Critical {
				c.critical++
			}
		}
		for _, m := range issueMetrics(counts, server.Name) {
			if !yield(m, nil) {
				return
			}
		}
	}
}

func issueMetrics(counts map[string]*issueCount, server string) []submit.Metric {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	slices.Sort(types)

	out := make([]submit.Metric, 0, 2*len(types))
	for _, t := range types {
		tags := []string{"server:" + server, "issue_type:" + t}
		out = append(out,
			gauge("rethinkdb.current_issues.total", float64(counts[t].total), tags),
			gauge("rethinkdb.current_issues.critical.total", float64(counts[t].critical), tags),
		)
	}
	return out
}
