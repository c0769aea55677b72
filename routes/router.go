package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"SmartHome.dashboard/controllers"
	"SmartHome.dashboard/models"
	"SmartHome.dashboard/utils"
)

// SetupRouter defines all API routes. The refresh endpoint is only registered
// when auth is not nil.
func SetupRouter(ctrl *controllers.DashboardController, auth func(http.Handler) http.Handler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", ctrl.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", ctrl.GetDashboard).Methods(http.MethodGet)
	api.HandleFunc("/sources/{source}", ctrl.GetSource).Methods(http.MethodGet)
	api.HandleFunc("/pressure", ctrl.GetPressureHistory).Methods(http.MethodGet)
	api.HandleFunc("/pv/today", ctrl.GetPVToday).Methods(http.MethodGet)
	api.HandleFunc("/panel.png", ctrl.GetPanel).Methods(http.MethodGet)

	if auth != nil {
		api.Handle("/refresh/{source}", auth(http.HandlerFunc(ctrl.Refresh))).Methods(http.MethodPost)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeNotFound, "Route not found.", nil, http.StatusNotFound))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeMethodNotAllowed, "Method not allowed.", nil, http.StatusMethodNotAllowed))
	})

	return router
}
