package util

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/pgx-contrib/pgxtrace"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/config"
	"github.com/mpapenbr/trackline/pkg/db/postgres"
	"github.com/mpapenbr/trackline/pkg/utils"
)

func ParseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates the application and sql logger according to the
// log flags and installs the application logger as default.
//
//nolint:cyclop // by design
func SetupLogger() (logger, sqlLogger *log.Logger) {
	logFormat := config.LogFormat
	logLevel := config.LogLevel
	var opts []log.Option
	if config.LogConfig != "" {
		cfg, err := log.LoadConfig(config.LogConfig)
		if err != nil {
			log.Warn("could not read log config", log.ErrorField(err))
		} else {
			if cfg.Format != "" {
				logFormat = cfg.Format
			}
			if cfg.Level != "" {
				logLevel = cfg.Level
			}
			if cfg.Filter != "" {
				if filter, err := log.WithFilter(cfg.Filter); err == nil {
					opts = append(opts, filter)
				} else {
					log.Warn("invalid log filter", log.ErrorField(err))
				}
			}
		}
	}
	opts = append(opts, log.WithCaller(true), log.AddCallerSkip(1))
	switch logFormat {
	case "json":
		logger = log.New(os.Stderr, ParseLogLevel(logLevel, log.InfoLevel), opts...)
		sqlLogger = log.New(os.Stderr, ParseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true), log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(os.Stderr, ParseLogLevel(logLevel, log.DebugLevel), opts...)
		sqlLogger = log.DevLogger(os.Stderr,
			ParseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true), log.AddCallerSkip(1))
	}
	log.ResetDefault(logger)
	return logger, sqlLogger
}

// WaitForRequiredServices blocks until postgres and NATS (if configured)
// accept connections. The process terminates if they do not.
func WaitForRequiredServices(ctx context.Context, needDB, needNats bool) {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}

	wg := sync.WaitGroup{}
	checkTCP := func(addr string) {
		defer wg.Done()
		if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
			log.Fatal("required services not ready", log.ErrorField(err))
		}
	}
	if postgresAddr := utils.ExtractFromDBURL(config.DB); needDB && postgresAddr != "" {
		wg.Add(1)
		go checkTCP(postgresAddr)
	}
	if natsAddr := utils.ExtractFromNatsURL(config.NatsURL); needNats && natsAddr != "" {
		wg.Add(1)
		go checkTCP(natsAddr)
	}
	log.Debug("Waiting for connection checks to return")
	wg.Wait()
	log.Debug("Required services are available")
}

// NewPool connects to config.DB. Statements are logged to sqlLogger and
// traced if withOtlp is set.
func NewPool(sqlLogger *log.Logger, withOtlp bool) *pgxpool.Pool {
	pgTracer := pgxtrace.CompositeQueryTracer{
		postgres.NewMyTracer(sqlLogger, log.DebugLevel),
	}
	if withOtlp {
		pgTracer = append(pgTracer, postgres.NewOtlpTracer())
	}
	return postgres.InitWithURL(config.DB, postgres.WithTracer(pgTracer))
}

// ConnectNats connects to config.NatsURL with endless reconnects.
func ConnectNats() (*nats.Conn, error) {
	l := log.Default().Named("nats")
	return nats.Connect(config.NatsURL,
		nats.Name("trackline"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.Warn("disconnected", log.ErrorField(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info("reconnected", log.String("url", nc.ConnectedUrl()))
		}),
	)
}
