package database

import (
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/xavierca1/leadsync/internal/entity"
)

// dialect papers over the placeholder and ordering differences between the
// two backends. Queries are written with "?" placeholders.
type dialect struct {
	driver  string
	orderBy string
}

func newDialect(driver string) dialect {
	if driver == DriverSQLite {
		return dialect{driver: driver, orderBy: "created_at ASC, rowid ASC"}
	}
	return dialect{driver: DriverPostgres, orderBy: "created_at ASC, id ASC"}
}

// rebind rewrites "?" placeholders to "$n" for Postgres.
func (d dialect) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// statusIn returns a filter clause and its arguments for a status set.
func (d dialect) statusIn(statuses []entity.LeadStatus) (string, []any) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	if d.driver == DriverPostgres {
		return "status = ANY(?)", []any{pq.Array(values)}
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return "status IN (" + marks + ")", args
}
