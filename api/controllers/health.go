package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/getsum-node/api/responses"
	pkgerrors "github.com/angelmondragon/getsum-node/pkg/errors"
	"github.com/angelmondragon/getsum-node/pkg/logger"
	"github.com/angelmondragon/getsum-node/pkg/types"
)

const readyTimeout = 3 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, types.HealthStatus{Status: types.HealthLive})
	}
}

// HealthReady pings every named dependency; nil entries are reported as down.
func HealthReady(logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := map[string]string{}
		failed := false
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "not configured"
				failed = true
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = err.Error()
				failed = true
				continue
			}
			checks[name] = "ok"
		}

		if failed {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, types.HealthStatus{Status: types.HealthReady, Checks: checks})
	}
}
