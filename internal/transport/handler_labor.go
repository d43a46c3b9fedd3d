package transport

import (
	"encoding/json"
	"net/http"

	"github.com/nexusmfg/traveler/internal/labor"
	"github.com/nexusmfg/traveler/model"
)

func handleStartLabor(svc *labor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())

		var input labor.StartInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		entry, err := svc.Start(r.Context(), input, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, entry)
	}
}

func handleUpdateLabor(svc *labor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var upd model.LaborUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		entry, err := svc.Update(r.Context(), id, upd, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, entry)
	}
}

func handleActiveLabor(svc *labor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		entry, err := svc.ActiveEntry(r.Context(), actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		// entry is null when the user has no running clock.
		WriteJSON(w, http.StatusOK, map[string]any{"entry": entry})
	}
}

func handleMyLabor(svc *labor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		entries, err := svc.ListMine(r.Context(), actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": entries})
	}
}

func handleLaborSummary(svc *labor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		periodDays := queryInt(r, "period_days", 7)
		summary, err := svc.Summary(r.Context(), periodDays, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, summary)
	}
}
