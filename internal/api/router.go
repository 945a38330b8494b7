package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(apiHandler.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", apiHandler.HealthHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/session", apiHandler.CreateSessionHandler)
			r.Delete("/session", apiHandler.DeleteSessionHandler)
			r.Get("/permissions", apiHandler.PermissionsHandler)
			r.Get("/dashboard", apiHandler.DashboardHandler)
			r.Get("/dashboard/categories", apiHandler.DashboardCategoriesHandler)

			// Category configuration; reads are open, writes need admin
			r.Get("/categories", apiHandler.ListCategoriesHandler)
			r.Get("/categories/{name}/questions", apiHandler.ListQuestionsHandler)
			r.Get("/modules", apiHandler.ListModulesHandler)
			r.Group(func(r chi.Router) {
				r.Use(apiHandler.RequireAdmin)
				r.Post("/categories", apiHandler.SaveCategoryHandler)
				r.Delete("/categories/{name}", apiHandler.DeleteCategoryHandler)
				r.Post("/categories/{name}/questions", apiHandler.SaveQuestionHandler)
				r.Delete("/categories/{name}/questions", apiHandler.DeleteQuestionHandler)

				r.Get("/reports", apiHandler.ListReportsHandler)
				r.Post("/reports/{id}/resolve", apiHandler.ResolveReportHandler)
			})

			// Documents
			r.Get("/documents", apiHandler.ListDocumentsHandler)
			r.Get("/documents/{refSeqNo}", apiHandler.GetDocumentHandler)
			r.Delete("/documents/{refSeqNo}", apiHandler.DeleteDocumentHandler)

			// Analysis workflow
			r.Post("/analyses", apiHandler.CreateAnalysisHandler)
			r.Route("/analyses/{id}", func(r chi.Router) {
				r.Get("/", apiHandler.GetAnalysisHandler)
				r.Delete("/", apiHandler.DeleteAnalysisHandler)
				r.Post("/confirm", apiHandler.ConfirmDocumentTypeHandler)
				r.Post("/category", apiHandler.SelectCategoryHandler)
				r.Post("/summary", apiHandler.GenerateSummaryHandler)
				r.Post("/chat", apiHandler.ChatHandler)
				r.Post("/local-questions", apiHandler.AddLocalQuestionHandler)
				r.Delete("/items", apiHandler.RemoveSummaryItemHandler)
				r.Post("/documents", apiHandler.CreateDocumentHandler)
				r.Post("/reset", apiHandler.ResetAnalysisHandler)
			})
		})
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("requestID", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
