package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/opsdeck/opsdeck/internal/assettag"
	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/backup"
	"github.com/opsdeck/opsdeck/internal/handler"
	"github.com/opsdeck/opsdeck/internal/middleware"
	"github.com/opsdeck/opsdeck/internal/permcache"
	"github.com/opsdeck/opsdeck/internal/store"
	ws "github.com/opsdeck/opsdeck/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	authH         *handler.AuthHandler
	userH         *handler.UserHandler
	ticketH       *handler.TicketHandler
	assetH        *handler.AssetHandler
	assetTagH     *handler.AssetTagHandler
	subscriptionH *handler.SubscriptionHandler
	deviceUpdateH *handler.DeviceUpdateHandler
	backupH       *handler.BackupHandler
	tokens        *auth.TokenManager
	userStore     *store.UserStore
	permCache     *permcache.Cache
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, tokens *auth.TokenManager, backupCfg backup.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	ticketStore := store.NewTicketStore(db)
	assetStore := store.NewAssetStore(db)
	categoryStore := store.NewCategoryStore(db)
	formatStore := store.NewAssetTagFormatStore(db)
	subscriptionStore := store.NewSubscriptionStore(db)
	deviceUpdateStore := store.NewDeviceUpdateStore(db)
	backupStore := store.NewBackupStore(db)
	restoreLogStore := store.NewRestoreLogStore(db)

	permCache := permcache.New(permcache.DefaultTTL)
	allocator := assettag.NewAllocator(assetStore, formatStore, logger.With("component", "assettag"))

	registry := backup.DefaultRegistry()
	backupMgr := backup.NewManager(backupCfg, db, registry, backupStore, restoreLogStore, func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	}, logger.With("component", "backup"))

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(userStore, tokens, logger.With("component", "auth")),
		userH:         handler.NewUserHandler(userStore, permCache, logger.With("component", "user")),
		ticketH:       handler.NewTicketHandler(ticketStore, hub, logger.With("component", "ticket")),
		assetH:        handler.NewAssetHandler(assetStore, categoryStore, hub, logger.With("component", "asset")),
		assetTagH:     handler.NewAssetTagHandler(allocator, formatStore, logger.With("component", "assettag")),
		subscriptionH: handler.NewSubscriptionHandler(subscriptionStore, hub, logger.With("component", "subscription")),
		deviceUpdateH: handler.NewDeviceUpdateHandler(deviceUpdateStore, logger.With("component", "device_update")),
		backupH:       handler.NewBackupHandler(backupMgr, backupStore, restoreLogStore, hub, logger.With("component", "backup_handler")),
		tokens:        tokens,
		userStore:     userStore,
		permCache:     permCache,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		logger:        logger,
	}
}

// BackupManager exposes the manager so main can run the schedule loop.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// RateLimiter exposes the limiter for periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Everything else requires a bearer token
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens, s.userStore, s.permCache)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.RequireAdmin(h).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Account
	mux.HandleFunc("POST /api/change-password", s.authH.ChangePassword)

	// Helpdesk tickets
	mux.HandleFunc("POST /api/tickets", s.ticketH.Create)
	mux.HandleFunc("GET /api/tickets", s.ticketH.List)
	mux.HandleFunc("GET /api/tickets/{id}", s.ticketH.Get)
	mux.HandleFunc("PUT /api/tickets/{id}", s.ticketH.Update)
	mux.HandleFunc("DELETE /api/tickets/{id}", s.ticketH.Delete)

	// Assets and categories
	mux.HandleFunc("POST /api/assets", s.assetH.Create)
	mux.HandleFunc("GET /api/assets", s.assetH.List)
	mux.HandleFunc("GET /api/assets/{id}", s.assetH.Get)
	mux.HandleFunc("PUT /api/assets/{id}", s.assetH.Update)
	mux.HandleFunc("POST /api/assets/{id}/retire", s.assetH.Retire)
	mux.HandleFunc("GET /api/asset-categories", s.assetH.ListCategories)
	mux.HandleFunc("POST /api/asset-categories", s.admin(s.assetH.CreateCategory))

	// Asset tag allocation
	mux.HandleFunc("POST /api/get-next-asset-id", s.assetTagH.NextID)
	mux.HandleFunc("POST /api/get-next-asset-id-by-category", s.assetTagH.NextIDByCategory)
	mux.HandleFunc("POST /api/reserve-next-asset-id", s.assetTagH.ReserveNextID)
	mux.HandleFunc("PUT /api/asset-tag-formats", s.admin(s.assetTagH.SaveFormat))

	// Subscriptions
	mux.HandleFunc("POST /api/subscriptions", s.subscriptionH.Create)
	mux.HandleFunc("GET /api/subscriptions", s.subscriptionH.List)
	mux.HandleFunc("GET /api/subscriptions/{id}", s.subscriptionH.Get)
	mux.HandleFunc("PUT /api/subscriptions/{id}", s.subscriptionH.Update)
	mux.HandleFunc("DELETE /api/subscriptions/{id}", s.subscriptionH.Deactivate)

	// Device update compliance
	mux.HandleFunc("POST /api/device-updates", s.deviceUpdateH.Ingest)
	mux.HandleFunc("GET /api/device-updates", s.deviceUpdateH.List)
	mux.HandleFunc("GET /api/device-updates/compliance", s.deviceUpdateH.Compliance)

	// Backup and restore (admin)
	mux.HandleFunc("POST /api/create-backup", s.admin(s.backupH.CreateBackup))
	mux.HandleFunc("POST /api/restore-backup", s.admin(s.backupH.RestoreBackup))
	mux.HandleFunc("GET /api/backups", s.admin(s.backupH.List))
	mux.HandleFunc("GET /api/backups/{id}", s.admin(s.backupH.Get))
	mux.HandleFunc("GET /api/restore-logs", s.admin(s.backupH.ListRestoreLogs))
	mux.HandleFunc("GET /api/backup-status", s.admin(s.backupH.Status))

	// User administration
	mux.HandleFunc("GET /api/users", s.admin(s.userH.List))
	mux.HandleFunc("POST /api/users", s.admin(s.userH.Create))
	mux.HandleFunc("POST /api/users/bulk", s.admin(s.userH.BulkCreate))
	mux.HandleFunc("POST /api/users/{id}/reset-password", s.admin(s.userH.ResetPassword))
	mux.HandleFunc("PUT /api/users/{id}/active", s.admin(s.userH.SetActive))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
