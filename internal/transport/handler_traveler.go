package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nexusmfg/traveler/internal/idempotency"
	"github.com/nexusmfg/traveler/internal/labor"
	"github.com/nexusmfg/traveler/internal/traveler"
	"github.com/nexusmfg/traveler/model"
)

// maxBodyBytes caps request body reads.
const maxBodyBytes = 1 << 20

func handleCreateTraveler(svc *traveler.Service, idem idempotency.Store, ttl time.Duration, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			WriteError(w, model.NewBadRequestError("unreadable request body"))
			return
		}

		key := r.Header.Get("X-Idempotency-Key")
		hash := idempotency.HashInput(body)
		if key != "" && idem != nil {
			cached, found, err := idem.Check(r.Context(), idempotency.FormatKey(key), hash)
			switch {
			case model.IsCode(err, model.ErrConflict):
				WriteError(w, err)
				return
			case err != nil:
				// Deduplication is best-effort: an unreachable store
				// must not fail the create.
				logger.Warn("idempotency: check failed", zap.String("key", key), zap.Error(err))
			case found:
				WriteJSON(w, http.StatusOK, cached)
				return
			}
		}

		var input model.TravelerInput
		if err := json.NewDecoder(bytes.NewReader(body)).Decode(&input); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		created, err := svc.Create(r.Context(), input, actor)
		if err != nil {
			WriteError(w, err)
			return
		}

		if key != "" && idem != nil {
			if err := idem.Store(r.Context(), idempotency.FormatKey(key), hash, created, ttl); err != nil {
				logger.Warn("idempotency: store failed", zap.String("key", key), zap.Error(err))
			}
		}

		WriteJSON(w, http.StatusCreated, created)
	}
}

func handleListTravelers(svc *traveler.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := traveler.ListFilter{
			Status:     model.TravelerStatus(r.URL.Query().Get("status")),
			Type:       model.TravelerType(r.URL.Query().Get("traveler_type")),
			WorkCenter: r.URL.Query().Get("work_center"),
			Search:     r.URL.Query().Get("search"),
			Limit:      queryInt(r, "limit", 50),
			Offset:     queryInt(r, "offset", 0),
		}

		travelers, err := svc.List(r.Context(), filter)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"data":   travelers,
			"limit":  filter.Limit,
			"offset": filter.Offset,
		})
	}
}

func handleGetTraveler(svc *traveler.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, detail)
	}
}

func handleUpdateTraveler(svc *traveler.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var upd model.TravelerUpdate
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&upd); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		result, err := svc.Update(r.Context(), id, upd, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		writeUpdateResult(w, result)
	}
}

func handleTransitionStatus(svc *traveler.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var body struct {
			Status model.TravelerStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		result, err := svc.TransitionStatus(r.Context(), id, body.Status, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		writeUpdateResult(w, result)
	}
}

func handleDeleteTraveler(svc *traveler.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id, actor); err != nil {
			WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleCompleteStep(svc *traveler.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		stepID, ok := pathID(w, r, "stepID")
		if !ok {
			return
		}
		step, err := svc.CompleteStep(r.Context(), stepID, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, step)
	}
}

func handleAddManualStep(svc *traveler.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var body struct {
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		step, err := svc.AddManualStep(r.Context(), id, body.Description, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, step)
	}
}

func handleTravelerHistory(svc *traveler.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		entries, err := svc.History(r.Context(), id)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": entries})
	}
}

func handleTravelerLabor(svc *labor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		entries, err := svc.ListForTraveler(r.Context(), id)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": entries})
	}
}

// writeUpdateResult writes 200 with the traveler when a change was applied
// directly, or 202 with the queued approval when it was deferred.
func writeUpdateResult(w http.ResponseWriter, result traveler.UpdateResult) {
	if result.Applied {
		WriteJSON(w, http.StatusOK, result)
		return
	}
	WriteJSON(w, http.StatusAccepted, result)
}

// handleManufacturingSteps serves the template catalog for one traveler
// type, so clients can preview the steps a new traveler will be seeded with.
func handleManufacturingSteps(catalog *traveler.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		typ := model.TravelerType(chi.URLParam(r, "type"))
		if !model.ValidTravelerType(typ) {
			WriteError(w, model.NewNotFoundError(fmt.Sprintf("unknown traveler type %q", typ)))
			return
		}
		steps := catalog.StepsFor(typ)
		if steps == nil {
			steps = []model.StepInput{}
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"traveler_type": typ,
			"steps":         steps,
		})
	}
}

// pathID parses a numeric URL parameter, writing a 400 response on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, model.NewBadRequestError("invalid "+name+" parameter"))
		return 0, false
	}
	return id, true
}

// queryInt extracts an integer query param with a default.
func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
