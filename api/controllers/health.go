package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/purchase-configurator/api/responses"
	"github.com/angelmondragon/purchase-configurator/pkg/config"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/angelmondragon/purchase-configurator/pkg/logger"
)

const envHeader = "X-Configurator-Env"

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each configured dependency. A nil pinger is skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, redisClient Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		checks := map[string]string{}
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis not ready").
					WithDetails(map[string]any{"step": "redis"}))
				return
			}
			checks["redis"] = "ok"
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
