package router

import (
	"net/http"

	annHandler "marginalia/internal/annotation"
	"marginalia/internal/annotation/service"
	"marginalia/internal/review"
	"marginalia/middleware"
	"marginalia/socket"
)

func Setup(svc *service.AnnotationService, sched *review.Scheduler, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()

	// WebSocket change feed
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(middleware.UserIDKey).(string)
		socket.ServeWs(hub, w, r, userID)
	})
	mux.Handle("/ws", middleware.AuthMiddleware(wsHandler))

	// REST API
	h := annHandler.NewAnnotationHandler(svc, sched)
	auth := middleware.AuthMiddleware

	mux.Handle("/api/annotations/create", auth(http.HandlerFunc(h.CreateAnnotation)))
	mux.Handle("/api/annotations/update", auth(http.HandlerFunc(h.UpdateAnnotation)))
	mux.Handle("/api/annotations/delete", auth(http.HandlerFunc(h.DeleteAnnotation)))
	mux.Handle("/api/annotations/search", auth(http.HandlerFunc(h.SearchAnnotations)))
	mux.Handle("/api/annotations/export", auth(http.HandlerFunc(h.ExportAnnotations)))
	mux.Handle("/api/annotations", auth(http.HandlerFunc(h.GetAnnotations)))
	mux.Handle("/api/review/queue", auth(http.HandlerFunc(h.GetReviewQueue)))
	mux.Handle("/api/review/grade", auth(http.HandlerFunc(h.GradeCard)))

	return middleware.CORSMiddleware(mux)
}
