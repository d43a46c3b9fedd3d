package transport

import (
	"encoding/json"
	"net/http"

	"github.com/nexusmfg/traveler/internal/user"
	"github.com/nexusmfg/traveler/model"
)

func handleCreateUser(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())

		var input user.CreateInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		u, err := svc.Create(r.Context(), input, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, u)
	}
}

func handleListUsers(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		users, err := svc.List(r.Context(), actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": users})
	}
}

func handleGetUser(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		u, err := svc.Get(r.Context(), id, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, u)
	}
}

func handleCurrentUser(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		u, err := svc.Get(r.Context(), actor.UserID, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, u)
	}
}

func handleUpdateUser(svc *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := model.MustActor(r.Context())
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var input user.UpdateInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		u, err := svc.Update(r.Context(), id, input, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, u)
	}
}
