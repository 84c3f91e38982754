package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/vetfront/internal/apiclient"
	"github.com/dgellow/vetfront/internal/authclient"
	"github.com/dgellow/vetfront/internal/config"
	"github.com/dgellow/vetfront/internal/cookie"
	"github.com/dgellow/vetfront/internal/crypto"
	"github.com/dgellow/vetfront/internal/idp"
	"github.com/dgellow/vetfront/internal/log"
	"github.com/dgellow/vetfront/internal/practice"
	"github.com/dgellow/vetfront/internal/server"
	"github.com/dgellow/vetfront/internal/session"
	"github.com/dgellow/vetfront/internal/storage"
)

// VetFront is the complete application: session state, both auth flows,
// and the browser-facing API over the practice backend.
type VetFront struct {
	config     *config.Config
	httpServer *server.HTTPServer
	sessions   *session.Manager
	store      storage.Store
}

// NewVetFront builds the application with all dependencies wired
func NewVetFront(ctx context.Context, cfg *config.Config) (*VetFront, error) {
	log.LogInfoWithFields("vetfront", "Building application", map[string]any{
		"baseURL": cfg.Frontend.BaseURL,
		"backend": cfg.Backend.BaseURL,
		"storage": string(cfg.Storage.Kind),
	})

	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	sessions := session.NewManager(store)

	encryptor, err := crypto.NewEncryptor([]byte(cfg.Frontend.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}
	cookieCodec := cookie.NewCodec(encryptor)

	stateSigner := crypto.NewTokenSigner([]byte(cfg.Frontend.SigningKey), 10*time.Minute)

	auth := authclient.NewService(cfg.Backend.BaseURL, cfg.Backend.Timeout, sessions)
	api := apiclient.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, sessions)
	practiceSvc := practice.NewService(api)

	var idpClient *idp.Client
	if cfg.Provider != nil {
		idpClient = idp.NewClient(cfg.Provider, sessions)
	}

	mux := buildHTTPHandler(cfg, sessions, auth, practiceSvc, idpClient, cookieCodec, &stateSigner)

	return &VetFront{
		config:     cfg,
		httpServer: server.NewHTTPServer(mux, cfg.Frontend.Addr),
		sessions:   sessions,
		store:      store,
	}, nil
}

// buildHTTPHandler wires the route table and middleware stack
func buildHTTPHandler(
	cfg *config.Config,
	sessions *session.Manager,
	auth *authclient.Service,
	practiceSvc *practice.Service,
	idpClient *idp.Client,
	cookieCodec *cookie.Codec,
	stateSigner *crypto.TokenSigner,
) http.Handler {
	mux := http.NewServeMux()

	withSession := func(h http.HandlerFunc) http.Handler {
		return server.ChainMiddleware(h, server.NewSessionMiddleware(cookieCodec))
	}

	mux.Handle("/health", server.NewHealthHandler())

	authHandler := server.NewAuthHandler(auth, sessions)
	mux.Handle("POST /api/auth/register", withSession(authHandler.HandleRegister))
	mux.Handle("POST /api/auth/login", withSession(authHandler.HandleLogin))
	mux.Handle("POST /api/auth/logout", withSession(authHandler.HandleLogout))
	mux.Handle("GET /api/auth/me", withSession(authHandler.HandleMe))

	if idpClient != nil {
		providerHandler := server.NewProviderHandler(idpClient, stateSigner, cfg.Frontend.BaseURL)
		mux.Handle("GET /auth/provider/login", withSession(providerHandler.HandleLogin))
		mux.Handle("GET /auth/provider/callback", withSession(providerHandler.HandleCallback))
		mux.Handle("POST /auth/provider/complete", withSession(providerHandler.HandleComplete))
		mux.Handle("POST /auth/provider/logout", withSession(providerHandler.HandleLogout))
		mux.Handle("GET /api/auth/provider/status", withSession(providerHandler.HandleStatus))
		mux.Handle("POST /api/auth/provider/init", withSession(providerHandler.HandleInit))
	} else {
		// The routes stay reachable without a provider so the UI sees a
		// deliberate 503 rather than a 404
		unavailable := server.NewProviderUnavailableHandler()
		mux.Handle("GET /auth/provider/login", withSession(unavailable))
		mux.Handle("GET /auth/provider/callback", withSession(unavailable))
		mux.Handle("POST /auth/provider/complete", withSession(unavailable))
		mux.Handle("POST /auth/provider/logout", withSession(unavailable))
		mux.Handle("GET /api/auth/provider/status", withSession(unavailable))
		mux.Handle("POST /api/auth/provider/init", withSession(unavailable))
	}

	practiceHandler := server.NewPracticeHandler(practiceSvc)
	mux.Handle("GET /api/pets", withSession(practiceHandler.HandleListPets))
	mux.Handle("POST /api/pets", withSession(practiceHandler.HandleCreatePet))
	mux.Handle("GET /api/pets/{id}", withSession(practiceHandler.HandleGetPet))
	mux.Handle("PUT /api/pets/{id}", withSession(practiceHandler.HandleUpdatePet))
	mux.Handle("DELETE /api/pets/{id}", withSession(practiceHandler.HandleDeletePet))

	mux.Handle("GET /api/clinics", withSession(practiceHandler.HandleListClinics))
	mux.Handle("POST /api/clinics", withSession(practiceHandler.HandleCreateClinic))
	mux.Handle("GET /api/clinics/{id}", withSession(practiceHandler.HandleGetClinic))
	mux.Handle("PUT /api/clinics/{id}", withSession(practiceHandler.HandleUpdateClinic))
	mux.Handle("DELETE /api/clinics/{id}", withSession(practiceHandler.HandleDeleteClinic))

	mux.Handle("GET /api/recordings", withSession(practiceHandler.HandleListRecordings))
	mux.Handle("GET /api/recordings/{id}", withSession(practiceHandler.HandleGetRecording))
	mux.Handle("DELETE /api/recordings/{id}", withSession(practiceHandler.HandleDeleteRecording))
	mux.Handle("POST /api/recordings/{id}/transcribe", withSession(practiceHandler.HandleTranscribeRecording))
	mux.Handle("PUT /api/recordings/{id}/transcript", withSession(practiceHandler.HandleUpdateTranscript))

	if cfg.Admin != nil && cfg.Admin.Enabled {
		adminHandler := server.NewAdminHandler()
		adminAuth := server.NewAdminAuthMiddleware(cfg.Admin)
		mux.Handle("GET /admin/logging", server.ChainMiddleware(http.HandlerFunc(adminHandler.HandleGetLogging), adminAuth))
		mux.Handle("PUT /admin/logging", server.ChainMiddleware(http.HandlerFunc(adminHandler.HandleSetLogging), adminAuth))
	}

	return server.ChainMiddleware(mux,
		server.NewCORSMiddleware(cfg.Frontend.AllowedOrigins),
		server.NewLoggerMiddleware(cfg.Frontend.Name),
		server.NewRecoverMiddleware(cfg.Frontend.Name),
	)
}

// setupStorage creates the session store based on configuration
func setupStorage(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Kind == config.StorageKindFirestore {
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    cfg.Storage.GCPProject,
			"database":   cfg.Storage.FirestoreDatabase,
			"collection": cfg.Storage.FirestoreCollection,
		})
		encryptor, err := crypto.NewEncryptor([]byte(cfg.Frontend.EncryptionKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
		return storage.NewFirestoreStore(
			ctx,
			cfg.Storage.GCPProject,
			cfg.Storage.FirestoreDatabase,
			cfg.Storage.FirestoreCollection,
			encryptor,
		)
	}

	log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
	return storage.NewMemoryStore(), nil
}

// Run starts the application and blocks until shutdown
func (v *VetFront) Run() error {
	log.LogInfoWithFields("vetfront", "Starting application", map[string]any{
		"addr": v.config.Frontend.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := v.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Firestore accumulates abandoned sessions; the memory store dies with
	// the process so the loop is a no-op there
	go storage.RunPurgeLoop(ctx, v.store, time.Hour, 30*24*time.Hour)

	// Audit trail for forced logouts
	invalidations, unsubscribe := v.sessions.Subscribe()
	defer unsubscribe()
	go func() {
		for ev := range invalidations {
			log.LogInfoWithFields("vetfront", "Session invalidated", map[string]any{
				"session_id": ev.SessionID,
				"reason":     string(ev.Reason),
			})
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("vetfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("vetfront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	case <-ctx.Done():
		shutdownReason = "context cancelled"
	}

	log.LogInfoWithFields("vetfront", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": "30s",
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := v.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("vetfront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	v.sessions.Close()
	if err := v.store.Close(); err != nil {
		log.LogWarnWithFields("vetfront", "Storage close error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("vetfront", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}
