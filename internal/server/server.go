package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/internal/hub"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/internal/router"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/internal/server/middleware"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/config"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/state"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/state/statemanager"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/transport"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

type App struct {
	logger       *slog.Logger
	stateManager state.Manager
	emitter      *hub.Emitter
	eventRouter  *router.EventRouter
	store        domain.Store
	wg           sync.WaitGroup
	http         *http.Server
	config       *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, store domain.Store) *App {
	stateManager := statemanager.NewInMemoryManager(logger)
	emitter := hub.New(logger, stateManager)
	eventRouter := router.NewEventRouter(logger, stateManager, emitter, store)

	app := &App{
		logger:       logger,
		stateManager: stateManager,
		emitter:      emitter,
		eventRouter:  eventRouter,
		store:        store,
		config:       cfg,
		ctx:          rootCtx,
	}

	connCounter := middleware.UserConnectionCounter(stateManager.GetUserConnectionCount)
	// The cycler closes over the state manager: on a limit breach in
	// "cycle" mode the user's oldest connection is closed to make room.
	connCycler := func(userID string) {
		oldest, found := stateManager.FindOldestUserConnection(userID)
		if found {
			logger.Info("Cycling connection: closing oldest", slog.String("userID", userID), slog.String("connID", oldest.ID.String()))
			oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
	}

	authed := func(h http.Handler) http.Handler {
		return middleware.Chain(h,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewAuthMiddleware(logger, app.config.Server.Auth.JWTSecret, store),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewAuthMiddleware(logger, app.config.Server.Auth.JWTSecret, store),
			middleware.NewConnectionLimiter(
				logger,
				connCounter,
				connCycler,
				app.config.Server.ConnectionLimit,
			),
		),
	)
	// Emission surface for the application's HTTP side: push a personal
	// notification, or broadcast into a project room.
	mux.Handle("POST /api/notify", authed(http.HandlerFunc(app.notifyHandler)))
	mux.Handle("POST /api/projects/{projectID}/broadcast", authed(http.HandlerFunc(app.projectBroadcastHandler)))

	app.http = &http.Server{Addr: app.config.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

// Emitter exposes the broadcast surface to in-process callers (HTTP CRUD
// handlers that need to push a notification). External callers never touch
// membership or presence directly.
func (a *App) Emitter() *hub.Emitter {
	return a.emitter
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	principal := reqMeta.Principal
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", principal.ID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.logger,
	)
	// register new connection
	if _, err := a.stateManager.RegisterConnection(conn, reqMeta.IP); err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}
	// associate the authenticated principal with the registered connection.
	user, cameOnline, err := a.stateManager.AssociateUser(conn.ID(), principal)
	if err != nil {
		connLogger.Error("Failed to associate user with connection", slog.Any("error", err))
		a.stateManager.DeregisterConnection(conn.ID())
		conn.Close(err)
		return
	}

	conn.SetOnMessageHandler(a.eventRouter.HandleMessage)
	conn.SetOnCloseHandler(a.teardown(connLogger))

	// Presence transition: only the principal's first connection announces.
	if cameOnline {
		a.emitter.ToAll(hub.EventUserOnline, user.Presence(), conn.ID())
	}

	connLogger.Info("User connection fully established")
	conn.Run()
	<-conn.Done()
}

// teardown builds the close handler for one connection. Cleanup is
// unconditional: the connection leaves the presence registry, every room
// it joined, and the typing table in one deregistration, and only then are
// the resulting transitions broadcast.
func (a *App) teardown(connLogger *slog.Logger) transport.OnCloseHandler {
	return func(id uuid.UUID, cause error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
		dep, err := a.stateManager.DeregisterConnection(id)
		if err != nil {
			connLogger.Error("Failed to deregister connection from state", slog.Any("error", err))
			return
		}
		for taskID, entry := range dep.Typing {
			a.emitter.ToRoom(entry.ProjectID, hub.EventUserStoppedTyping, map[string]string{
				"taskId": taskID,
				"userId": entry.UserID,
			}, id)
		}
		if dep.WentOffline {
			a.emitter.ToAll(hub.EventUserOffline, dep.User.Presence(), id)
		}
	}
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, sink := range a.stateManager.AllConnections() {
		sink.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
