package backend

import (
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/avantgardnerio/hermitage/internal/conflict"
)

func init() {
	Register(&Backend{
		Name:     "mysql",
		Driver:   "mysql",
		BuildDSN: mysqlDSN,
		Setup: []string{
			"drop table if exists test",
			"create table test (id int primary key, value int) engine=innodb",
			"insert into test (id, value) values (1, 10), (2, 20)",
		},
		Cleanup: "rollback",
		Settle:  500 * time.Millisecond,
		Rules:   conflict.MySQLRules,
	})
}

// mysqlDSN enables multi-statement strings; scenario steps such as
// "set session ...; start transaction;" are sent as one statement.
func mysqlDSN(t Target) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(orDefault(t.Host, "127.0.0.1"), strconv.Itoa(orDefault(t.Port, 3306)))
	cfg.DBName = orDefault(t.Database, "mysql")
	cfg.User = orDefault(t.User, "root")
	cfg.Passwd = t.Password
	cfg.MultiStatements = true
	if len(t.Options) > 0 {
		cfg.Params = make(map[string]string, len(t.Options))
		for k, v := range t.Options {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN()
}
