package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"sqlgraph/internal/sqlrender"
)

func defaultPort(driver string) int {
	dialect, err := sqlrender.DialectByName(driver)
	if err != nil {
		return 0
	}
	switch dialect.Name {
	case sqlrender.MySQL.Name:
		return 3306
	case sqlrender.Postgres.Name:
		return 5432
	case sqlrender.SQLServer.Name:
		return 1433
	default:
		return 0
	}
}

// Dialect resolves the connection's SQL dialect from its driver name.
func (c *ConnectionConfig) Dialect() (sqlrender.Dialect, error) {
	return sqlrender.DialectByName(c.Driver)
}

// BuildDSN returns the data source name handed to database/sql. An explicit
// DSN is used as is, except that MySQL DSNs always get parseTime enabled.
func (c *ConnectionConfig) BuildDSN() (string, error) {
	dialect, err := c.Dialect()
	if err != nil {
		return "", err
	}

	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		if dialect.Name != sqlrender.MySQL.Name {
			return dsn, nil
		}
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("connection %q: dsn is invalid: %w", c.Name, err)
		}
		parsed.ParseTime = true
		return parsed.FormatDSN(), nil
	}

	switch dialect.Name {
	case sqlrender.MySQL.Name:
		return c.mysqlDSN(), nil
	case sqlrender.Postgres.Name:
		u := &url.URL{
			Scheme:   "postgres",
			User:     c.userInfo(),
			Host:     c.address(),
			Path:     "/" + c.Database,
			RawQuery: c.query(nil),
		}
		return u.String(), nil
	case sqlrender.SQLServer.Name:
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     c.userInfo(),
			Host:     c.address(),
			RawQuery: c.query(map[string]string{"database": c.Database}),
		}
		return u.String(), nil
	case sqlrender.SQLite.Name:
		if c.Database == "" {
			return "", fmt.Errorf("connection %q: sqlite requires database to be a file path", c.Name)
		}
		if q := c.query(nil); q != "" {
			return c.Database + "?" + q, nil
		}
		return c.Database, nil
	default:
		return "", fmt.Errorf("connection %q: unsupported driver %q", c.Name, c.Driver)
	}
}

func (c *ConnectionConfig) mysqlDSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.address()
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if len(c.Params) > 0 {
		cfg.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN()
}

func (c *ConnectionConfig) address() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	if c.Port == 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}

func (c *ConnectionConfig) userInfo() *url.Userinfo {
	if c.User == "" {
		return nil
	}
	if c.Password == "" {
		return url.User(c.User)
	}
	return url.UserPassword(c.User, c.Password)
}

// query encodes extra followed by Params; Params win on conflict.
func (c *ConnectionConfig) query(extra map[string]string) string {
	values := url.Values{}
	for k, v := range extra {
		if v != "" {
			values.Set(k, v)
		}
	}
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(k, c.Params[k])
	}
	return values.Encode()
}

// Redacted returns the DSN with the password masked, for logs.
func (c *ConnectionConfig) Redacted() string {
	dsn, err := c.BuildDSN()
	if err != nil {
		return ""
	}
	dialect, _ := c.Dialect()
	switch dialect.Name {
	case sqlrender.MySQL.Name:
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return ""
		}
		if parsed.Passwd != "" {
			parsed.Passwd = "xxxxx"
		}
		return parsed.FormatDSN()
	case sqlrender.SQLite.Name:
		return dsn
	default:
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		return u.Redacted()
	}
}
