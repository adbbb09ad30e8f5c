package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/railyard/internal/core"
	"github.com/dcrodman/railyard/internal/core/client"
)

// websocketFrontend serves the same protocol as frontend with one frame per
// binary WebSocket message, for clients that can't open raw sockets.
type websocketFrontend struct {
	Address string
	Path    string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger
}

func (f *websocketFrontend) Run(ctx context.Context) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	clientWg := &sync.WaitGroup{}
	mux := http.NewServeMux()
	mux.HandleFunc(f.Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			f.Logger.Warnf("[%s] upgrade failed for %s: %v", f.Backend.Identifier(), r.RemoteAddr, err)
			return
		}

		clientWg.Add(1)
		go func() {
			defer clientWg.Done()
			c := client.NewClient(client.NewWebsocketTransport(conn), f.Config.Transport.SendQueueSize)
			serveClient(ctx, c, f.Backend, f.Config, f.Logger)
		}()
	})

	server := &http.Server{
		Addr:              f.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	f.Logger.Infof("[%s] waiting for websocket connections on %v%s", f.Backend.Identifier(), f.Address, f.Path)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("error serving websockets on %s: %w", f.Address, err)
	}

	f.Logger.Infof("[%v] websocket frontend shutting down", f.Backend.Identifier())
	clientWg.Wait()
	return nil
}
