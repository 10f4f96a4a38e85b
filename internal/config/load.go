package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	envPrefix             = "SQLGRAPH"
	defaultConnectionName = "default"
)

// Connection defaults that viper cannot apply to list entries.
const (
	defaultPoolMaxOpen             = 25
	defaultPoolMaxIdle             = 5
	defaultPoolMaxLifetime         = 5 * time.Minute
	defaultQueryTimeout            = 30 * time.Second
	defaultConnectionTimeout       = 60 * time.Second
	defaultConnectionRetryInterval = 2 * time.Second
)

// stdin and the password prompt are swappable in tests.
var (
	stdin          io.Reader = os.Stdin
	promptPassword           = promptTerminalPassword
)

// Load loads configuration from multiple sources with the following precedence:
// 1. Command line flags (only those explicitly set)
// 2. Environment variables (SQLGRAPH_ prefix, .env file loaded first)
// 3. Config file (--config, or sqlgraph.yaml in the usual locations)
// 4. Default values
//
// flags must already be parsed; DefineFlags registers the expected set.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// --- Config file ---
	cfgPath := ""
	if flags != nil {
		cfgPath, _ = flags.GetString("config")
	}
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("sqlgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/sqlgraph/")
		v.AddConfigPath("$HOME/.sqlgraph")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	// Env vars: SQLGRAPH_SERVER_PORT, SQLGRAPH_CONNECTION_DSN
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindChangedFlagsToViper(flags, v)
	}

	// --- Unmarshal (strict) ---
	var cfg Config
	if err := v.UnmarshalExact(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.resolveConnections(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// resolveConnections folds the shorthand connection into the list, applies
// per-connection defaults and reads file and prompt secrets.
func (c *Config) resolveConnections() error {
	if strings.TrimSpace(c.Connection.Driver) != "" {
		shorthand := c.Connection
		if shorthand.Name == "" {
			shorthand.Name = defaultConnectionName
		}
		c.Connections = append(c.Connections, shorthand)
	}
	c.Connection = ConnectionConfig{}

	if err := validateSingleStdinFileSource(c.Connections); err != nil {
		return err
	}

	for i := range c.Connections {
		conn := &c.Connections[i]
		applyConnectionDefaults(conn, len(c.Connections) == 1)
		if err := conn.resolveSecrets(); err != nil {
			return fmt.Errorf("connection %q: %w", conn.Name, err)
		}
	}
	return nil
}

func applyConnectionDefaults(conn *ConnectionConfig, only bool) {
	if conn.Name == "" && only {
		conn.Name = defaultConnectionName
	}
	if conn.Pool.MaxOpen == 0 {
		conn.Pool.MaxOpen = defaultPoolMaxOpen
	}
	if conn.Pool.MaxIdle == 0 {
		conn.Pool.MaxIdle = defaultPoolMaxIdle
	}
	if conn.Pool.MaxLifetime == 0 {
		conn.Pool.MaxLifetime = defaultPoolMaxLifetime
	}
	if conn.QueryTimeout == 0 {
		conn.QueryTimeout = defaultQueryTimeout
	}
	if conn.ConnectionTimeout == 0 {
		conn.ConnectionTimeout = defaultConnectionTimeout
	}
	if conn.ConnectionRetryInterval == 0 {
		conn.ConnectionRetryInterval = defaultConnectionRetryInterval
	}
	if conn.Port == 0 && conn.DSN == "" && conn.DSNFile == "" {
		conn.Port = defaultPort(conn.Driver)
	}
}

func (conn *ConnectionConfig) resolveSecrets() error {
	if conn.DSN == "" && conn.DSNFile != "" {
		dsn, err := readSecretFile(conn.DSNFile)
		if err != nil {
			return fmt.Errorf("failed to read DSN file: %w", err)
		}
		conn.DSN = dsn
	}
	if conn.DSN != "" {
		return nil
	}
	if conn.Password == "" && conn.PasswordFile != "" {
		pwd, err := readSecretFile(conn.PasswordFile)
		if err != nil {
			return fmt.Errorf("failed to read password file: %w", err)
		}
		conn.Password = pwd
	}
	if conn.Password == "" && conn.PasswordPrompt {
		pwd, err := promptPassword(conn.Name)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		conn.Password = pwd
	}
	return nil
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults. Only dotted flag
// names are config keys; command flags such as --config are skipped.
func bindChangedFlagsToViper(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Visit(func(f *pflag.Flag) {
		if !strings.Contains(f.Name, ".") {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := flags.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := flags.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := flags.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := flags.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := flags.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := flags.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// DefineFlags registers the command line flags using canonical snake_case keys.
func DefineFlags(flags *pflag.FlagSet) {
	// Single connection shorthand
	flags.String("connection.name", "", "Connection name served under /graphql/{name} (default: default)")
	flags.String("connection.driver", "", "Database driver (mysql, postgres, sqlserver, sqlite)")
	flags.String("connection.dsn", "", "Complete driver-specific DSN")
	flags.String("connection.dsn_file", "", "Path to file containing the DSN (use @- for stdin)")
	flags.String("connection.host", "", "Database host")
	flags.Int("connection.port", 0, "Database port")
	flags.String("connection.user", "", "Database user")
	flags.String("connection.password_file", "", "Path to file containing database password (use @- for stdin)")
	flags.Bool("connection.password_prompt", false, "Prompt for database password securely")
	flags.String("connection.database", "", "Database name (file path for sqlite)")
	flags.String("connection.schema", "", "Database schema to expose")
	flags.Bool("connection.procedures", false, "Discover stored procedures")
	flags.Duration("connection.query_timeout", 0, "Per-statement timeout")

	// Server flags
	flags.Int("server.port", 0, "HTTP server port")
	flags.Int("server.graphql_max_depth", 0, "Maximum join nesting depth per root field")
	flags.Int("server.graphql_max_joins", 0, "Maximum number of joins per root field")
	flags.Duration("server.schema_refresh_min_interval", 0, "Minimum interval between schema refresh checks (0 disables polling)")
	flags.Duration("server.schema_refresh_max_interval", 0, "Maximum interval between schema refresh checks")
	flags.Bool("server.graphiql_enabled", false, "Enable GraphiQL UI (dev only)")
	flags.Duration("server.read_timeout", 0, "HTTP server read timeout")
	flags.Duration("server.write_timeout", 0, "HTTP server write timeout")
	flags.Duration("server.idle_timeout", 0, "HTTP server idle timeout")
	flags.Duration("server.shutdown_timeout", 0, "HTTP server graceful shutdown timeout")
	flags.Duration("server.health_check_timeout", 0, "Health check timeout")

	// Observability flags
	flags.String("observability.service_name", "", "Service name for observability")
	flags.String("observability.service_version", "", "Service version for observability")
	flags.String("observability.environment", "", "Environment name (dev, staging, prod)")
	flags.Bool("observability.metrics_enabled", false, "Enable metrics collection")
	flags.Bool("observability.tracing_enabled", false, "Enable distributed tracing")
	flags.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio from 0.0 to 1.0")
	flags.Bool("observability.sqlcommenter_enabled", false, "Inject trace context into SQL queries")
	flags.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	flags.String("observability.logging.format", "", "Log format (json, text)")
	flags.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")
	flags.String("observability.otlp.endpoint", "", "OTLP endpoint for all signals (e.g., localhost:4317)")
	flags.String("observability.otlp.protocol", "", "OTLP protocol for all signals (grpc, http/protobuf)")
	flags.Bool("observability.otlp.insecure", false, "Use insecure connection (no TLS)")

	flags.StringP("config", "c", "", "Config file path")
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	v.SetDefault("connections", []map[string]any{})

	// Shorthand connection keys must be known to viper for env binding.
	v.SetDefault("connection.name", "")
	v.SetDefault("connection.driver", "")
	v.SetDefault("connection.dsn", "")
	v.SetDefault("connection.dsn_file", "")
	v.SetDefault("connection.host", "")
	v.SetDefault("connection.port", 0)
	v.SetDefault("connection.user", "")
	v.SetDefault("connection.password", "")
	v.SetDefault("connection.password_file", "")
	v.SetDefault("connection.password_prompt", false)
	v.SetDefault("connection.database", "")
	v.SetDefault("connection.schema", "")
	v.SetDefault("connection.procedures", false)
	v.SetDefault("connection.query_timeout", 0)

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.graphql_max_depth", 5)
	v.SetDefault("server.graphql_max_joins", 0)
	v.SetDefault("server.schema_refresh_min_interval", 30*time.Second)
	v.SetDefault("server.schema_refresh_max_interval", 5*time.Minute)
	v.SetDefault("server.graphiql_enabled", false)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.health_check_timeout", 2*time.Second)

	// Observability defaults
	v.SetDefault("observability.service_name", "sqlgraph")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.sqlcommenter_enabled", false)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.exports_enabled", false)

	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
	v.SetDefault("observability.otlp.retry_enabled", true)
	v.SetDefault("observability.otlp.retry_max_attempts", 3)
}

// promptTerminalPassword prompts for a password without echoing to terminal.
func promptTerminalPassword(connection string) (string, error) {
	fmt.Printf("Enter database password for connection %q: ", connection)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

func readSecretFile(path string) (string, error) {
	var data []byte
	var err error

	if path == "@-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// validateSingleStdinFileSource rejects more than one "@-" file setting,
// since stdin can only be read once.
func validateSingleStdinFileSource(conns []ConnectionConfig) error {
	var configured []string
	for i, conn := range conns {
		if strings.TrimSpace(conn.DSNFile) == "@-" {
			configured = append(configured, fmt.Sprintf("connections[%d].dsn_file", i))
		}
		if strings.TrimSpace(conn.PasswordFile) == "@-" {
			configured = append(configured, fmt.Sprintf("connections[%d].password_file", i))
		}
	}

	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}
	return nil
}
