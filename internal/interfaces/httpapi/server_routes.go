package httpapi

import (
	"net/http"

	"github.com/ahlev/Parlaybot/internal/usecase"
)

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerPickRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/leagues/{league}/picks", handler.ListLeaguePicks)
	mux.HandleFunc("GET /v1/parlay", handler.GetParlay)
	mux.HandleFunc("GET /v1/admin", handler.GetAdministrator)
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST "+usecase.WeeklyResetJobPath, RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunWeeklyResetJob)))
}
