package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/detprep/internal/bank"
	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/sequencer"
)

type moduleInfo struct {
	catalog.Module
	Sequenced bool `json:"sequenced"`
}

// ListModulesHandler handles GET /api/modules.
func ListModulesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := catalog.All()
		out := make([]moduleInfo, 0, len(all))
		for _, m := range all {
			out = append(out, moduleInfo{Module: m, Sequenced: sequencer.InOrder(m.Route)})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GetBankHandler handles GET /api/banks/{module}?difficulty=. Answer keys are
// stripped.
func GetBankHandler(banks *bank.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := catalog.Lookup(chi.URLParam(r, "module"))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown module", "")
			return
		}
		d, err := catalog.ParseDifficulty(r.URL.Query().Get("difficulty"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad difficulty", err.Error())
			return
		}
		pool, err := banks.Pool(r.Context(), m.ID, d)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, bank.ErrUnknownModule) {
				status = http.StatusNotFound
			}
			writeError(w, status, "bank unavailable", err.Error())
			return
		}
		items := make([]bank.Item, 0, len(pool))
		for _, it := range pool {
			items = append(items, it.StudentView(m.Kind))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"module":     m.ID,
			"difficulty": d,
			"items":      items,
		})
	}
}

// ReloadBanksHandler handles POST /api/admin/banks/reload.
func ReloadBanksHandler(banks *bank.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		banks.Reload()
		w.WriteHeader(http.StatusNoContent)
	}
}
