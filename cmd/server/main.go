package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/erp-dms/dms-assistant/internal/analysis"
	"github.com/erp-dms/dms-assistant/internal/api"
	"github.com/erp-dms/dms-assistant/internal/auth"
	"github.com/erp-dms/dms-assistant/internal/catalog"
	"github.com/erp-dms/dms-assistant/internal/config"
	"github.com/erp-dms/dms-assistant/internal/core"
	"github.com/erp-dms/dms-assistant/internal/documents"
	"github.com/erp-dms/dms-assistant/internal/logger"
	"github.com/erp-dms/dms-assistant/internal/rpc"
	"github.com/erp-dms/dms-assistant/internal/store"
)

func main() {
	config.LoadConfig()

	// Operator tooling: the ERP authenticates users, this only mints a bearer token.
	tokenFor := flag.String("token", "", "Print a signed bearer token for the given ERP user name and exit")
	flag.Parse()

	if *tokenFor != "" {
		token, err := auth.GenerateJWT(*tokenFor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	log := logger.New(config.AppConfig.LogLevel, config.AppConfig.LogFilePath)
	defer log.Sync()

	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbStore.Close()

	analyzer, closeAnalyzer, err := newAnalyzer(log)
	if err != nil {
		log.Fatal("Failed to initialize analyzer", zap.Error(err))
	}
	defer closeAnalyzer()

	rpcClient := rpc.NewClient(config.AppConfig.RPCBaseURL, config.AppConfig.RPCTimeout, log)
	catalogService := catalog.NewService(rpcClient)
	documentService := documents.NewService(rpcClient)

	analysisService := core.NewAnalysisService(catalogService, documentService, analyzer, dbStore, config.AppConfig.SessionTTL, log)
	docsService := core.NewDocumentsService(documentService, log)
	sessionService := auth.NewSessionService(documentService, dbStore, config.AppConfig.SessionTTL, config.AppConfig.PermissionsTTL, log)

	apiHandler := api.NewAPIHandler(analysisService, docsService, catalogService, sessionService, dbStore, log)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second, // uploads
		WriteTimeout: 5 * time.Minute,  // document creation is one sequential RPC per row
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting server", zap.String("addr", serverAddr), zap.String("analyzer", config.AppConfig.AnalysisProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exiting gracefully")
}

func newAnalyzer(log *zap.Logger) (analysis.Analyzer, func(), error) {
	switch config.AppConfig.AnalysisProvider {
	case config.ProviderGemini:
		g, err := analysis.NewGeminiAnalyzer(context.Background(), config.AppConfig.GeminiAPIKey, log)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	default:
		return analysis.NewHTTPAnalyzer(config.AppConfig.AnalysisAPIURL, config.AppConfig.RPCTimeout, log), func() {}, nil
	}
}
