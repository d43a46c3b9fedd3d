package transport

import (
	"encoding/json"
	"net/http"

	"github.com/nexusmfg/traveler/internal/approval"
	"github.com/nexusmfg/traveler/model"
)

func handleRequestApproval(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())

		var body struct {
			TravelerID  int64             `json:"traveler_id"`
			RequestType model.RequestType `json:"request_type"`
			Details     string            `json:"details"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		a, err := svc.Request(r.Context(), body.TravelerID, body.RequestType, body.Details, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, a)
	}
}

func handleApprove(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		a, err := svc.Approve(r.Context(), id, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, a)
	}
}

func handleReject(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var body struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		a, err := svc.Reject(r.Context(), id, body.Reason, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, a)
	}
}

func handleListPendingApprovals(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		approvals, err := svc.ListPending(r.Context(), actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": approvals})
	}
}

func handleListMyApprovals(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		approvals, err := svc.ListMine(r.Context(), actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": approvals})
	}
}

func handleTravelerApprovals(svc *approval.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		approvals, err := svc.ListForTraveler(r.Context(), id)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": approvals})
	}
}
