// README: Wires config, infrastructure and module services for the CLI commands.
package main

import (
	"context"
	"errors"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"fooddispatch/internal/config"
	"fooddispatch/internal/infra"
	"fooddispatch/internal/maps"
	"fooddispatch/internal/metrics"
	"fooddispatch/internal/modules/dispatch"
	"fooddispatch/internal/modules/location"
	"fooddispatch/internal/modules/matching"
	"fooddispatch/internal/modules/notify"
	"fooddispatch/internal/modules/order"
)

// mapsQPS caps outgoing Google Maps requests per process.
const mapsQPS = 50

type app struct {
	cfg      config.Config
	db       *pgxpool.Pool
	redis    *redis.Client
	mqtt     mqtt.Client
	dispatch *dispatch.Service
	location *location.Service
	log      zerolog.Logger
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, log: infra.NewLogger(cfg.Env, "dispatchd")}
	if cfg.Maps.APIKey == "" {
		return nil, errors.New("DISPATCH_MAPS_API_KEY is required")
	}

	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.db = db
	a.redis = infra.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	notifier, err := a.newNotifier(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	mapsClient, err := maps.NewClient(cfg.Maps.APIKey, mapsQPS)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("maps client: %w", err)
	}
	geocoder := maps.NewCachedGeocoder(
		maps.NewGeocoder(mapsClient, cfg.Dispatch.ProviderTimeout),
		a.redis,
		infra.NewLogger(cfg.Env, "geocode"),
	)
	distance := maps.NewDistanceService(mapsClient, cfg.Dispatch.ProviderTimeout)

	m, err := metrics.NewDispatch(prometheus.DefaultRegisterer)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	a.location = location.NewService(location.NewStore(a.redis))
	a.dispatch = dispatch.NewService(dispatch.Deps{
		Store:    dispatch.NewPGStore(db),
		Orders:   order.NewService(order.NewStore(db)),
		Drivers:  a.location,
		Geocoder: geocoder,
		Ranker:   matching.NewRanker(distance, infra.NewLogger(cfg.Env, "ranker")),
		Notifier: notifier,
		Metrics:  m,
	}, cfg.Dispatch, infra.NewLogger(cfg.Env, "dispatch"))
	return a, nil
}

func (a *app) newNotifier(ctx context.Context) (dispatch.Notifier, error) {
	log := infra.NewLogger(a.cfg.Env, "notify")
	switch a.cfg.Notifier {
	case "fcm":
		client, err := infra.NewMessagingClient(ctx, a.cfg.Firebase.ProjectID, a.cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("firebase messaging: %w", err)
		}
		return notify.NewFCM(client, log), nil
	case "mqtt":
		client, err := infra.NewMQTT(a.cfg.MQTT.BrokerURL, a.cfg.MQTT.ClientID, log)
		if err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		a.mqtt = client
		return notify.NewMQTT(client, a.cfg.MQTT.TopicPrefix), nil
	default:
		return notify.NewLog(log), nil
	}
}

func (a *app) close() {
	if a.mqtt != nil {
		a.mqtt.Disconnect(250)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("redis close")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
