package core

// HTTP control surface: the concrete RPCServer collaborator. The JSON-RPC
// API proper lives outside this module, but the node still needs the
// json-rpc-api-control topic's stop path and a place for `node
// info`/health probes to read from, so this serves exactly that much over
// chi.

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// NodeInfo is the read-only identity/progress view GET /info returns.
type NodeInfo struct {
	ID            string `json:"id"`
	Address       string `json:"address"`
	NodeType      string `json:"node_type"`
	LastConfirmed string `json:"last_confirmed"`
	AccountRoot   string `json:"account_root"`
	TxRoot        string `json:"transaction_root"`
	ClaimRoot     string `json:"claim_root"`
	MempoolSize   int    `json:"mempool_size"`
}

// APIServer exposes health, info and the stop control over HTTP.
type APIServer struct {
	addr string
	bus  *Bus
	info func() NodeInfo
}

var _ RPCServer = (*APIServer)(nil)

// NewAPIServer binds addr. info is sampled per request; the stop control
// publishes on the json-rpc-api-control topic.
func NewAPIServer(addr string, bus *Bus, info func() NodeInfo) *APIServer {
	return &APIServer{addr: addr, bus: bus, info: info}
}

func (a *APIServer) router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/info", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.info())
	})
	r.Post("/control/stop", func(w http.ResponseWriter, _ *http.Request) {
		a.bus.Publish(TopicJSONRPCControl, Event{Kind: EventStop})
		w.WriteHeader(http.StatusAccepted)
	})
	return r
}

// Serve blocks until ctx is cancelled or the listener fails.
func (a *APIServer) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: a.addr, Handler: a.router()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
