package controllers

import (
	"context"
	"net/http"

	"go.uber.org/multierr"

	"github.com/hydromart/marketplace-backend/api/responses"
	"github.com/hydromart/marketplace-backend/pkg/config"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
	"github.com/hydromart/marketplace-backend/pkg/logger"
)

const envHeader = "X-HydroMart-Env"

// Pinger is a dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and redis; any failure answers 503.
func HealthReady(cfg *config.Config, logg *logger.Logger, db Pinger, redis Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]string{"database": "ok", "redis": "ok"}
		var err error
		for name, dep := range map[string]Pinger{"database": db, "redis": redis} {
			if dep == nil {
				continue
			}
			if pingErr := dep.Ping(r.Context()); pingErr != nil {
				checks[name] = "unavailable"
				err = multierr.Append(err, pkgerrors.Wrap(pkgerrors.CodeDependency, pingErr, name+" ping failed"))
			}
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "not ready").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
