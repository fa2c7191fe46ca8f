package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/grafana/pyroscope-go"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"

	apihttp "traderboard/internal/api/http"
	"traderboard/internal/config"
	"traderboard/internal/domain"
	"traderboard/internal/metrics"
	natspub "traderboard/internal/pubsub/nats"
	"traderboard/internal/rating"
	"traderboard/internal/security"
	"traderboard/internal/service"
	"traderboard/internal/stores/clickhouse"
	"traderboard/internal/stores/redis"
)

type Container struct {
	app *App

	// infra
	redis *redis.Client
	ch    *clickhouse.Conn
	nc    *natspub.Client

	snapshots *redis.SnapshotStore
	chWriter  *clickhouse.Writer

	svc *service.Service

	httpSrv *apihttp.Server

	profiler *pyroscope.Profiler

	cleanupF func()
}

func (c *Container) Start() error {
	return c.app.Start()
}

func (c *Container) Stop(ctx context.Context) error {
	err := c.app.Shutdown(ctx)

	if c.cleanupF != nil {
		c.cleanupF()
	}
	return err
}

// Construct image app
func Build(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	profiler, err := metrics.InitPProf(cfg.App.InstanceID, &cfg.Metrics.Pyroscope)
	if err != nil {
		lg.Panicf("Pyroscope initialize failed: %v", err)
	}
	if profiler != nil {
		lg.Infof("Successfully initialize Pyroscope to %s as %s",
			cfg.Metrics.Pyroscope.ServerAddr, cfg.Metrics.Pyroscope.AppName)
	}

	// Redis client + week snapshot store
	rdb, err := redis.New(ctx, &cfg.Stores.Redis)
	if err != nil {
		lg.Panicf("Failed to initialize redis client: %v", err)
	}
	snapshots := redis.NewSnapshotStore(lg, rdb, cfg.Stores.Redis.Prefix)
	lg.Infof("Successfully initialize redis client, addr=%s", cfg.Stores.Redis.Addr)

	// ClickHouse client + rating results writer
	ch, err := clickhouse.New(ctx, &cfg.Stores.ClickHouse)
	if err != nil {
		lg.Panicf("Failed to initialize clickhouse client: %v", err)
	}
	url := strings.Split(cfg.Stores.ClickHouse.DSN, "?")
	lg.Infof("Successfully initialize clickhouse client, url=%s", url[0])

	chWriter := clickhouse.NewWriter(lg, ch.Native, cfg.Stores.ClickHouse)
	lg.Info("Successfully initialize clickhouse writer")

	// NATS broadcaster for rating results
	natsCl, err := natspub.New(lg, &cfg.PubSub.NATS)
	if err != nil {
		lg.Panicf("Failed to initialize nats client: %v", err)
	}
	lg.Infof("Successfully initialize nats client, url=%s", cfg.PubSub.NATS.URL)

	// Upload boundary: every emitted result fans out to NATS and lands in
	// ClickHouse. Both sinks are fire-and-forget for the core.
	upload := func(res *domain.RatingResult) {
		subject := natsCl.Subject("user", strconv.FormatUint(uint64(res.UserID), 10))
		if err := natsCl.Publish(context.Background(), subject, res); err != nil {
			lg.Errorf("Failed to broadcast rating result for user %d: %v", res.UserID, err)
		}
		if err := chWriter.Enqueue(clickhouse.NewRatingResultRow(res)); err != nil {
			lg.Errorf("Failed to enqueue rating result for user %d: %v", res.UserID, err)
		}
	}

	// Warm-start snapshot; absence is not an error
	weekSnap, err := snapshots.Load(ctx)
	if err != nil {
		lg.Errorf("Failed to load week snapshot, starting cold: %v", err)
		weekSnap = nil
	}

	svc := service.New(lg, upload, service.Options{
		Week: rating.Options{
			SettleDelay:  cfg.Rating.SettleDelay,
			GracePeriod:  cfg.Rating.GracePeriod,
			PollInterval: cfg.Rating.PollInterval,
		},
		WeekSnapshot: weekSnap,
	})
	lg.Info("Successfully initialize rating service")

	if err = metrics.RegisterProcessedCommands(svc.ProcessedCommands); err != nil {
		lg.Errorf("Failed to register processed commands metric: %v", err)
	}

	var verifier *security.RS256Verifier
	if cfg.Security.JWT.Enabled {
		if verifier, err = security.NewRS256Verifier(&cfg.Security.JWT); err != nil {
			lg.Errorf("Failed to initialize JWT verifier: %v", err) // API stays open -> continue
			verifier = nil
		} else {
			lg.Info("Successfully initialize JWT verifier")
		}
	}

	handler := apihttp.NewHandler(apihttp.Deps{
		Log:         lg,
		Svc:         svc,
		Broadcaster: natsCl,
		Checks: map[string]apihttp.HealthChecker{
			"redis":      snapshots,
			"clickhouse": ch,
		},
	})

	httpSrv := apihttp.NewServer(&apihttp.ServerDeps{
		Log:      lg,
		Cfg:      cfg,
		Handler:  handler,
		Verifier: verifier,
	})
	lg.Info("Successfully initialize HTTP server")

	c := &Container{
		app:       New(lg, svc, httpSrv),
		redis:     rdb,
		ch:        ch,
		nc:        natsCl,
		snapshots: snapshots,
		chWriter:  chWriter,
		svc:       svc,
		httpSrv:   httpSrv,
		profiler:  profiler,
	}

	cleanupF := func() {
		ctxClean, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// persist the current week for warm restart before closing stores
		if week := svc.CurrentWeek(); week != nil {
			if data, snapErr := week.Snapshot(); snapErr != nil {
				lg.Errorf("Failed to snapshot current week: %v", snapErr)
			} else if snapErr = snapshots.Save(ctxClean, data); snapErr != nil {
				lg.Errorf("Failed to save week snapshot: %v", snapErr)
			}
		}

		if c.profiler != nil {
			if err = c.profiler.Stop(); err != nil {
				lg.Errorf("Failed to stop profiler: %v", err)
			}
		}

		if err = chWriter.Close(ctxClean); err != nil {
			lg.Errorf("Failed to close by cleanupF clickhouse writer: %v", err)
		}

		if err = ch.Close(); err != nil {
			lg.Errorf("Failed to close by cleanupF clickhouse client: %v", err)
		}

		if err = natsCl.Close(); err != nil {
			lg.Errorf("Failed to close by cleanupF nats client: %v", err)
		}

		if err = rdb.Close(); err != nil {
			lg.Errorf("Failed to close by cleanupF redis client: %v", err)
		}

		lg.Info("Successfully cleaned up dependency")
	}

	lg.Info("Successfully initialize Wiring")
	return c, cleanupF, nil
}
