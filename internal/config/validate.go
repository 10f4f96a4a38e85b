package config

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"regexp"
	"strings"

	"sqlgraph/internal/schemafilter"
	"sqlgraph/internal/sqlrender"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) addWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// connectionNamePattern keeps names usable as a URL path segment.
var connectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	validateConnections(result, c.Connections)
	c.Server.validate(result)
	c.Observability.validate(result)

	return result
}

func validateConnections(result *ValidationResult, conns []ConnectionConfig) {
	if len(conns) == 0 {
		result.addError("connections", "at least one connection must be configured",
			"add a connections entry or set --connection.driver and --connection.dsn")
		return
	}

	seen := make(map[string]int, len(conns))
	for i := range conns {
		conn := &conns[i]
		field := fmt.Sprintf("connections[%d]", i)
		if prev, dup := seen[conn.Name]; dup && conn.Name != "" {
			result.addError(field+".name", fmt.Sprintf("duplicate connection name %q", conn.Name),
				fmt.Sprintf("already used by connections[%d]", prev))
		}
		seen[conn.Name] = i
		conn.validate(field, result)
	}
}

func (c *ConnectionConfig) validate(field string, result *ValidationResult) {
	if !connectionNamePattern.MatchString(c.Name) {
		result.addError(field+".name", fmt.Sprintf("invalid connection name %q", c.Name),
			"use letters, digits, underscore or dash")
	}

	dialect, err := c.Dialect()
	if err != nil {
		result.addError(field+".driver", err.Error(), "valid values are: mysql, postgres, sqlserver, sqlite")
		return
	}

	usesDSN := strings.TrimSpace(c.DSN) != "" || strings.TrimSpace(c.DSNFile) != ""
	if !usesDSN {
		if c.Database == "" {
			result.addError(field+".database", "database is required when dsn is not set",
				"set database (a file path for sqlite) or a complete dsn")
		}
		if dialect.Name != sqlrender.SQLite.Name && (c.Port < 1 || c.Port > 65535) {
			result.addError(field+".port", fmt.Sprintf("port %d is out of valid range (1-65535)", c.Port), "")
		}
	}
	if usesDSN && (c.Host != "" || c.User != "" || c.Password != "") {
		result.addWarning(field+".dsn", "dsn is set, discrete connection fields are ignored", "")
	}
	if usesDSN && !c.dsnParses() {
		result.addError(field+".dsn", "dsn could not be parsed", "check the driver-specific DSN syntax")
	}

	if c.Procedures && dialect.Name == sqlrender.SQLite.Name {
		result.addWarning(field+".procedures", "sqlite has no stored procedures", "procedure discovery will return nothing")
	}

	validateFilter(field+".filter", c.Filter, result)

	if c.QueryTimeout < 0 {
		result.addError(field+".query_timeout", "query_timeout cannot be negative", "")
	}
	if c.Pool.MaxOpen < 0 {
		result.addError(field+".pool.max_open", "max_open cannot be negative", "")
	}
	if c.Pool.MaxIdle < 0 {
		result.addError(field+".pool.max_idle", "max_idle cannot be negative", "")
	}
	if c.Pool.MaxIdle > c.Pool.MaxOpen && c.Pool.MaxOpen > 0 {
		result.addWarning(field+".pool.max_idle", "max_idle is greater than max_open",
			"idle connections will be limited to max_open")
	}

	if c.ConnectionTimeout < 0 {
		result.addError(field+".connection_timeout", "connection_timeout cannot be negative", "")
	}
	if c.ConnectionRetryInterval < 0 {
		result.addError(field+".connection_retry_interval", "connection_retry_interval cannot be negative", "")
	}
	if c.ConnectionTimeout > 0 && c.ConnectionRetryInterval > c.ConnectionTimeout {
		result.addWarning(field+".connection_retry_interval", "connection_retry_interval is greater than connection_timeout",
			"only one connection attempt will be made")
	}
}

func validateFilter(field string, f schemafilter.Config, result *ValidationResult) {
	check := func(key string, patterns []string) {
		for _, p := range patterns {
			if _, err := path.Match(p, ""); err != nil {
				result.addError(field+"."+key, fmt.Sprintf("invalid pattern %q", p), "patterns use shell glob syntax")
			}
		}
	}
	check("allow_tables", f.AllowTables)
	check("deny_tables", f.DenyTables)
	for table, patterns := range f.AllowColumns {
		check("allow_columns."+table, patterns)
	}
	for table, patterns := range f.DenyColumns {
		check("deny_columns."+table, patterns)
	}
}

// dsnParses reports whether an explicit DSN is well formed for its driver.
// A DSN still to be read from a file is not checked here.
func (c *ConnectionConfig) dsnParses() bool {
	if strings.TrimSpace(c.DSN) == "" {
		return true
	}
	_, err := c.BuildDSN()
	return err == nil
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.addError("server.port", fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port), "")
	}
	if s.GraphQLMaxDepth < 0 {
		result.addError("server.graphql_max_depth", "graphql_max_depth cannot be negative", "")
	}
	if s.GraphQLMaxJoins < 0 {
		result.addError("server.graphql_max_joins", "graphql_max_joins cannot be negative", "")
	}

	if s.SchemaRefreshMinInterval < 0 {
		result.addError("server.schema_refresh_min_interval", "schema_refresh_min_interval cannot be negative", "")
	}
	if s.SchemaRefreshMaxInterval < 0 {
		result.addError("server.schema_refresh_max_interval", "schema_refresh_max_interval cannot be negative", "")
	}
	if s.SchemaRefreshMinInterval > 0 && s.SchemaRefreshMaxInterval > 0 &&
		s.SchemaRefreshMaxInterval < s.SchemaRefreshMinInterval {
		result.addWarning("server.schema_refresh_max_interval", "schema_refresh_max_interval is less than schema_refresh_min_interval",
			"polling will use the minimum interval")
	}
	if s.SchemaRefreshMinInterval == 0 {
		result.addWarning("server.schema_refresh_min_interval", "schema polling is disabled",
			"schema changes are picked up only on SIGHUP or restart")
	}

	if s.ShutdownTimeout < 0 {
		result.addError("server.shutdown_timeout", "shutdown_timeout cannot be negative", "")
	}
	if s.GraphiQLEnabled {
		result.addWarning("server.graphiql_enabled", "GraphiQL is enabled", "disable it in production")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.addError("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.addError("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.addError("observability.trace_sample_ratio", fmt.Sprintf("trace_sample_ratio %v is out of range", o.TraceSampleRatio),
			"use a value from 0.0 to 1.0")
	}
	if o.SQLCommenterEnabled && !o.TracingEnabled {
		result.addWarning("observability.sqlcommenter_enabled", "sqlcommenter has no effect without tracing",
			"enable observability.tracing_enabled")
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.addError(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.addError(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			"use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.addError(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}

	if o.RetryMaxAttempts < 0 {
		result.addError(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
