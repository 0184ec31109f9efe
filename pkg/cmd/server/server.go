package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"connectrpc.com/grpchealth"
	"github.com/nats-io/nats.go"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/trackline/log"
	cmdutil "github.com/mpapenbr/trackline/pkg/cmd/util"
	"github.com/mpapenbr/trackline/pkg/config"
	"github.com/mpapenbr/trackline/pkg/db/postgres"
	"github.com/mpapenbr/trackline/pkg/endpoints/session"
	"github.com/mpapenbr/trackline/pkg/endpoints/track"
	"github.com/mpapenbr/trackline/pkg/events"
	natsevents "github.com/mpapenbr/trackline/pkg/events/nats"
	"github.com/mpapenbr/trackline/pkg/repository/api"
	"github.com/mpapenbr/trackline/pkg/repository/memory"
	natsrepo "github.com/mpapenbr/trackline/pkg/repository/nats"
	pgrepo "github.com/mpapenbr/trackline/pkg/repository/postgres"
	"github.com/mpapenbr/trackline/pkg/service"
	"github.com/mpapenbr/trackline/pkg/utils/broadcast"
)

var healthServices = []string{
	"trackline.v1.TrackService",
	"trackline.v1.SessionService",
}

//nolint:funlen // by design
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the lap timing server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.ServerAddr,
		"addr",
		"a",
		"localhost:8080",
		"http server listen address")
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.SQLLogLevel,
		"sql-log-level",
		"debug",
		"controls the log level for sql methods")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format")
	cmd.Flags().StringVar(&config.LogConfig,
		"log-config",
		"",
		"yaml file with log level, format and filter rules")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data")
	cmd.Flags().BoolVar(&config.TelemetryStdout,
		"telemetry-stdout",
		false,
		"write telemetry data to stdout instead of the telemetry endpoint")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().StringVar(&config.AdminToken,
		"admin-token",
		"",
		"admin token value (required to modify tracks)")
	cmd.Flags().StringVar(&config.BestLapStore,
		"bestlap-store",
		"",
		"where best laps are stored (postgres, nats, memory). "+
			"Defaults to postgres if --db is set, memory otherwise")
	cmd.Flags().StringVar(&config.BestLapBucket,
		"bestlap-bucket",
		natsrepo.DefaultBucket,
		"NATS key value bucket for best laps")
	cmd.Flags().BoolVar(&config.PublishLapEvents,
		"publish-lap-events",
		false,
		"publish completed laps to NATS")
	cmd.Flags().StringVar(&config.CacheTTL,
		"cache-ttl",
		"30m",
		"duration generated checkpoints are cached (0 = until the track changes)")
	cmd.Flags().StringVar(&config.TrackDir,
		"track-dir",
		"",
		"directory with track documents to import and watch")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert",
		"",
		"file containing the TLS cert")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key",
		"",
		"file containing the TLS key")
	cmd.Flags().StringVar(&config.TLSCAFile,
		"tls-ca",
		"",
		"file containing the CA for client certs")
	return cmd
}

type app struct {
	repos     api.Repositories
	nc        *nats.Conn
	local     *events.Local
	publisher events.Publisher
	tracks    *service.TrackService
	sessions  *service.SessionService
	health    *grpchealth.StaticChecker
	telemetry *config.Telemetry
}

//nolint:funlen,cyclop // by design
func startServer(ctx context.Context) error {
	logger, sqlLogger := cmdutil.SetupLogger()
	ctx = log.AddToContext(ctx, logger)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Debug("Config:",
		log.String("db", config.DB),
		log.String("nats", config.NatsURL),
		log.String("bestLapStore", bestLapStore()),
		log.Bool("publishLapEvents", config.PublishLapEvents),
	)

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	cmdutil.WaitForRequiredServices(ctx, config.DB != "", needsNats())

	a := &app{}
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		var err error
		if a.telemetry, err = config.SetupTelemetry(ctx); err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}
	defer a.close()

	if err := a.setup(ctx, sqlLogger); err != nil {
		log.Error("server could not be started", log.ErrorField(err))
		return err
	}

	if config.TrackDir != "" {
		td := newTrackDir(config.TrackDir, a.tracks)
		if err := td.importAll(ctx); err != nil {
			log.Warn("could not import tracks",
				log.String("dir", config.TrackDir), log.ErrorField(err))
		}
		go func() {
			if err := td.watch(ctx); err != nil {
				log.Warn("could not watch track dir", log.ErrorField(err))
			}
		}()
	}

	server := &http.Server{
		Addr:              config.ServerAddr,
		Handler:           h2c.NewHandler(newCORS().Handler(a.mux()), &http2.Server{}),
		TLSConfig:         newTLSConfigProvider(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting http server",
			log.String("addr", config.ServerAddr),
			log.Bool("tls", server.TLSConfig != nil))
		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		errCh <- err
	}()
	log.Info("Server started")
	setupGoRoutinesDump()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case v := <-sigChan:
		log.Debug("Got signal ", log.Any("signal", v))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", log.ErrorField(err))
			return err
		}
	}
	for _, s := range healthServices {
		a.health.SetStatus(s, grpchealth.StatusNotServing)
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", log.ErrorField(err))
	}
	log.Info("Server terminated")
	return nil
}

//nolint:cyclop // by design
func (a *app) setup(ctx context.Context, sqlLogger *log.Logger) error {
	var err error
	if config.DB != "" {
		pool := cmdutil.NewPool(sqlLogger, a.telemetry != nil)
		a.repos = pgrepo.NewRepositories(pool)
	} else {
		log.Info("no database configured, keeping tracks in memory")
		a.repos = memory.NewRepositories()
	}
	if needsNats() {
		if a.nc, err = cmdutil.ConnectNats(); err != nil {
			return err
		}
	}
	switch bestLapStore() {
	case config.StoreNats:
		var kv *natsrepo.BestLapRepository
		kv, err = natsrepo.NewBestLapRepository(ctx, a.nc,
			natsrepo.WithBucket(config.BestLapBucket))
		if err != nil {
			return err
		}
		a.repos = api.WithBestLaps(a.repos, kv)
	case config.StoreMemory:
		if config.DB != "" {
			a.repos = api.WithBestLaps(a.repos, memory.NewBestLapRepository())
		}
	case config.StorePostgres:
		if config.DB == "" {
			return fmt.Errorf("best lap store %s requires --db", config.StorePostgres)
		}
	default:
		return fmt.Errorf("unknown best lap store %q", config.BestLapStore)
	}

	a.local = events.NewLocal(broadcast.WithTelemetry[*events.LapEvent]())
	a.publisher = a.local
	if config.PublishLapEvents {
		a.publisher = events.Multi{a.local, natsevents.NewPublisher(a.nc)}
	}

	cacheTTL, err := time.ParseDuration(config.CacheTTL)
	if err != nil {
		log.Warn("Invalid cache ttl. Using default 30m", log.ErrorField(err))
		cacheTTL = 30 * time.Minute
	}
	a.tracks = service.NewTrackService(a.repos, service.WithCacheTTL(cacheTTL))
	a.sessions = service.NewSessionService(a.tracks, a.repos.BestLap(),
		service.WithPublisher(a.publisher))
	a.health = grpchealth.NewStaticChecker(healthServices...)
	return nil
}

func (a *app) mux() *http.ServeMux {
	mux := http.NewServeMux()
	track.NewHandler(a.tracks, a.sessions,
		track.WithAdminToken(config.AdminToken),
		track.WithLapSubscriber(a.local),
	).Register(mux)
	session.NewHandler(a.sessions).Register(mux)
	mux.Handle(grpchealth.NewHandler(a.health))
	return mux
}

func (a *app) close() {
	if a.local != nil {
		a.local.Close()
	}
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			log.Warn("could not drain nats connection", log.ErrorField(err))
		}
	}
	postgres.CloseDB()
	if a.telemetry != nil {
		a.telemetry.Shutdown()
	}
}

func bestLapStore() string {
	if config.BestLapStore != "" {
		return config.BestLapStore
	}
	if config.DB != "" {
		return config.StorePostgres
	}
	return config.StoreMemory
}

func needsNats() bool {
	return bestLapStore() == config.StoreNats || config.PublishLapEvents
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowOriginFunc: func(origin string) bool {
			// Allow all origins, which effectively disables CORS.
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Accept-Post",
			"Connect-Accept-Encoding",
			"Connect-Content-Encoding",
			"Content-Encoding",
			"Grpc-Accept-Encoding",
			"Grpc-Encoding",
			"Grpc-Message",
			"Grpc-Status",
			"Grpc-Status-Details-Bin",
		},
		// Let browsers cache CORS information for longer, which reduces the number
		// of preflight requests.
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
