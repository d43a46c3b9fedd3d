package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusmfg/traveler/internal/workorder"
)

func handleListWorkOrders(store workorder.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := store.List(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": orders})
	}
}

func handleGetWorkOrder(store workorder.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "number")
		wo, err := store.GetByNumber(r.Context(), number)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, wo)
	}
}
