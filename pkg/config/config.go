package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                 string // connection string for the database
	NatsURL            string // URL of the NATS server
	WaitForServices    string // duration to wait for other services to be ready
	LogLevel           string // sets the log level (zap log level values)
	SQLLogLevel        string // sets the log level for sql subsystem
	LogFormat          string // text vs json
	LogConfig          string // path to log config file
	MigrationSourceURL string // location of migration files
	EnableTelemetry    bool   // enable telemetry
	TelemetryEndpoint  string // endpoint for telemetry
	TelemetryStdout    bool   // export telemetry data to stdout instead of the endpoint
	ProfilingPort      int    // port for profiling
	ServerAddr         string // listen addr for the http server
	AdminToken         string // token for admin access
	BestLapStore       string // where best laps are kept (postgres, nats, memory)
	BestLapBucket      string // name of the NATS key value bucket for best laps
	PublishLapEvents   bool   // publish lap events via NATS
	CacheTTL           string // duration checkpoints of a track are cached
	TrackDir           string // directory with track documents imported on change
	TLSCertFile        string // path to TLS cert file
	TLSKeyFile         string // path to TLS key file
	TLSCAFile          string // path to TLS CA file for client certs
)

const (
	StorePostgres = "postgres"
	StoreNats     = "nats"
	StoreMemory   = "memory"
	StoreNone     = "none"
)
