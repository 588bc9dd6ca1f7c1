package server

import "net/http"

func NewMux(analysisHandler *AnalysisHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/analyses", analysisHandler.HandleSubmit)
	mux.HandleFunc("GET /v1/analyses", analysisHandler.HandleList)
	mux.HandleFunc("GET /v1/analyses/{id}", analysisHandler.HandleGet)
	mux.HandleFunc("GET /v1/analyses/{id}/events", analysisHandler.HandleEvents)
	mux.HandleFunc("GET /v1/analyses/{id}/checkpoints", analysisHandler.HandleCheckpointStages)
	mux.HandleFunc("DELETE /v1/analyses/{id}/checkpoints", analysisHandler.HandleClearCheckpoints)

	mux.HandleFunc("GET /healthz", HandleHealthz)

	return CORS(mux)
}
