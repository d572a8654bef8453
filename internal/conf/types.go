package conf

import "google.golang.org/protobuf/types/known/durationpb"

// Bootstrap is the root configuration tree.
type Bootstrap struct {
	Server   *Server
	Data     *Data
	Log      *Log
	Pipeline *Pipeline
}

// Server holds transport configuration.
type Server struct {
	Http *Server_HTTP
}

// Server_HTTP configures the kratos HTTP server.
type Server_HTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds data layer configuration.
type Data struct {
	Database *Data_Database
	Redis    *Data_Redis
}

// Data_Database configures the MySQL outcome archive.
type Data_Database struct {
	Driver string
	Source string
}

// Data_Redis configures the state mirror.
type Data_Redis struct {
	Network      string
	Addr         string
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// Log configures the zap logger.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}

// Pipeline declares the registered sources and the monitor/compliance
// tunables.
type Pipeline struct {
	Sources    []*Source
	Monitor    *Monitor
	Compliance *Compliance
}

// Source declares one external data provider.
type Source struct {
	Name    string
	BaseUrl string
	// Endpoints maps capability name to the provider's URL path.
	Endpoints      map[string]string
	RequestTimeout *durationpb.Duration
	RateLimit      *Source_RateLimit
	CircuitBreaker *Source_CircuitBreaker
	Attribution    string
	TermsAccepted  bool
	CostPerCall    float64
}

// Source_RateLimit is the per-source spacing configuration.
type Source_RateLimit struct {
	MaxCalls int32
	Period   *durationpb.Duration
}

// Source_CircuitBreaker is the per-source breaker tuning.
type Source_CircuitBreaker struct {
	FailureThreshold int32
	RecoveryTimeout  *durationpb.Duration
	SuccessThreshold int32
}

// Monitor tunes the pipeline monitor.
type Monitor struct {
	FailureStreakAlert int32
	FreshnessMaxAge    *durationpb.Duration
	AlertHistorySize   int32
}

// Compliance tunes the compliance scheduler.
type Compliance struct {
	RetentionMaxAge      *durationpb.Duration
	CostBudget           float64
	CheckIntervalMinutes map[string]int32
}
