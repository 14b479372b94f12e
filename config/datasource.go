package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/microsoft/go-mssqldb/msdsn"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/schema"
)

// Datasource is a resolved datasource declaration.
type Datasource struct {
	Name     string
	Provider string
	// Dialect is zero for MongoDB.
	Dialect dialect.DatabaseType
	// DriverName is the database/sql driver name, or "mongodb".
	DriverName string
	// DSN is the connection string in the form the driver expects.
	DSN string
	// Env names the variable the url was read from, if any.
	Env      string
	Host     string
	Database string
}

// IsMongo reports whether the datasource is a MongoDB deployment.
func (d *Datasource) IsMongo() bool { return d.DriverName == "mongodb" }

// ResolveDatasource resolves the url of ds and converts it into the DSN of
// the provider's driver.
func ResolveDatasource(ds *schema.Datasource, opts ...Option) (*Datasource, error) {
	o := newOptions(opts)
	raw, env, err := o.resolve(ds.URL())
	if err != nil {
		return nil, fmt.Errorf("config: datasource %s: %w", ds.Name, err)
	}
	r := &Datasource{Name: ds.Name, Provider: ds.Provider(), Env: env}
	if r.Provider == "mongodb" {
		err = r.mongo(raw)
	} else {
		d, ok := dialect.Parse(r.Provider)
		if !ok {
			return nil, fmt.Errorf("config: datasource %s: unknown provider %q", ds.Name, r.Provider)
		}
		r.Dialect, r.DriverName = d, d.DriverName()
		err = r.parse(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("config: datasource %s: %w", ds.Name, err)
	}
	return r, nil
}

// ParseDSN converts a connection url of dialect d into the DSN of its driver.
func ParseDSN(d dialect.DatabaseType, raw string) (string, error) {
	r := &Datasource{Dialect: d}
	if err := r.parse(raw); err != nil {
		return "", err
	}
	return r.DSN, nil
}

func (r *Datasource) parse(raw string) error {
	switch r.Dialect {
	case dialect.PostgreSQL:
		return r.postgres(raw)
	case dialect.MySQL:
		return r.mysql(raw)
	case dialect.SQLite:
		return r.sqlite(raw)
	case dialect.MSSQL:
		return r.mssql(raw)
	}
	return fmt.Errorf("unknown dialect %s", r.Dialect)
}

// postgres accepts a postgres:// url or a key/value connection string.
func (r *Datasource) postgres(raw string) error {
	dsn := raw
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		var err error
		if dsn, err = pq.ParseURL(raw); err != nil {
			return fmt.Errorf("parse postgres url: %w", err)
		}
	}
	kv := keyValues(dsn)
	r.DSN, r.Host, r.Database = dsn, kv["host"], kv["dbname"]
	if p := kv["port"]; p != "" && r.Host != "" {
		r.Host = net.JoinHostPort(r.Host, p)
	}
	return nil
}

// keyValues splits a libpq key/value string. Values may be single-quoted.
func keyValues(dsn string) map[string]string {
	kv := make(map[string]string)
	for len(dsn) > 0 {
		dsn = strings.TrimLeft(dsn, " ")
		k, rest, ok := strings.Cut(dsn, "=")
		if !ok {
			break
		}
		var v string
		if strings.HasPrefix(rest, "'") {
			var b strings.Builder
			i := 1
			for ; i < len(rest); i++ {
				if rest[i] == '\\' && i+1 < len(rest) {
					i++
				} else if rest[i] == '\'' {
					break
				}
				b.WriteByte(rest[i])
			}
			v, dsn = b.String(), rest[min(i+1, len(rest)):]
		} else {
			v, dsn, _ = strings.Cut(rest, " ")
		}
		kv[strings.TrimSpace(k)] = v
	}
	return kv
}

// mysql accepts a mysql:// url or a go-sql-driver DSN.
func (r *Datasource) mysql(raw string) error {
	var (
		cfg *mysql.Config
		err error
	)
	if strings.HasPrefix(raw, "mysql://") || strings.HasPrefix(raw, "mariadb://") {
		cfg, err = mysqlURL(raw)
	} else {
		cfg, err = mysql.ParseDSN(raw)
	}
	if err != nil {
		return fmt.Errorf("parse mysql dsn: %w", err)
	}
	r.DSN, r.Host, r.Database = cfg.FormatDSN(), cfg.Addr, cfg.DBName
	return nil
}

func mysqlURL(raw string) (*mysql.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	q := u.Query()
	if len(q) > 0 {
		cfg.Params = make(map[string]string, len(q))
		for k := range q {
			cfg.Params[k] = q.Get(k)
		}
	}
	cfg.ParseTime = true
	return cfg, nil
}

// sqlite accepts file:path, sqlite:path or a bare path.
func (r *Datasource) sqlite(raw string) error {
	path := strings.TrimPrefix(strings.TrimPrefix(raw, "sqlite:"), "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return fmt.Errorf("sqlite url %q has no path", raw)
	}
	r.DSN, r.Database = raw, path
	if !strings.HasPrefix(raw, "file:") {
		r.DSN = "file:" + strings.TrimPrefix(raw, "sqlite:")
	}
	return nil
}

// mssql accepts a sqlserver:// url, an ADO string or an odbc: string.
func (r *Datasource) mssql(raw string) error {
	cfg, err := msdsn.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse sqlserver dsn: %w", err)
	}
	r.DSN, r.Database, r.Host = raw, cfg.Database, cfg.Host
	if cfg.Port != 0 {
		r.Host = net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	}
	return nil
}

func (r *Datasource) mongo(raw string) error {
	cs, err := connstring.ParseAndValidate(raw)
	if err != nil {
		return fmt.Errorf("parse mongodb uri: %w", err)
	}
	r.DriverName, r.DSN, r.Database = "mongodb", raw, cs.Database
	r.Host = strings.Join(cs.Hosts, ",")
	return nil
}
