package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"mediaforge/internal/jobs"
	"mediaforge/internal/ledger"
	"mediaforge/internal/middleware"
	"mediaforge/internal/plancfg"
	"mediaforge/internal/providers/chain"
	"mediaforge/internal/providers/shotplan"
)

// App bundles the dependencies the handlers need.
type App struct {
	Manager *jobs.Manager
	Ledger  *ledger.Ledger
	Plans   *plancfg.Config
	Planner *chain.Chain[shotplan.Request, shotplan.Plan]
	Logger  zerolog.Logger
}

func NewApp(manager *jobs.Manager, ledger *ledger.Ledger, plans *plancfg.Config, planner *chain.Chain[shotplan.Request, shotplan.Plan], logger zerolog.Logger) *App {
	return &App{
		Manager: manager,
		Ledger:  ledger,
		Plans:   plans,
		Planner: planner,
		Logger:  logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// identity pulls the authenticated caller out of the request context.
func (a *App) identity(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || id.UserID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return middleware.Identity{}, false
	}
	return id, true
}
