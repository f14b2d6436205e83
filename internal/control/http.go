// Package control is the introspection and lifecycle surface for a
// running pipeline.Pipeline, adapted from the teacher's cmd/ns-api (HTTP,
// gorilla/mux) and cmd/ns-api/v2 (grpc) dual-server shape. The teacher's
// handlers marshal and unmarshal generated protobuf request/response
// types from api/gen/v1; that package is never generated anywhere in
// this codebase (see DESIGN.md), so this package's wire types are the
// well-known structpb.Struct and emptypb.Empty instead — no protoc-gen-go
// output required for either the HTTP or the grpc surface.
package control

import (
	"encoding/json"
	"net/http"

	"NetSpectraDPI/internal/pipeline"

	"github.com/gorilla/mux"
)

// Controller holds the dependencies both the HTTP and grpc surfaces share:
// a running pipeline to freeze, unfreeze and report stats for.
type Controller struct {
	Pipeline *pipeline.Pipeline
}

// NewRouter builds the HTTP surface, mirroring the teacher's
// mux.NewRouter()-plus-HandleFunc layout in cmd/ns-api/main.go.
func (c *Controller) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/stats", c.statsHandler).Methods("GET")
	r.HandleFunc("/api/v1/freeze", c.freezeHandler).Methods("POST")
	r.HandleFunc("/api/v1/unfreeze", c.unfreezeHandler).Methods("POST")
	return r
}

func (c *Controller) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats := c.Pipeline.Stats()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (c *Controller) freezeHandler(w http.ResponseWriter, r *http.Request) {
	c.Pipeline.Freeze()
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) unfreezeHandler(w http.ResponseWriter, r *http.Request) {
	c.Pipeline.Unfreeze()
	w.WriteHeader(http.StatusNoContent)
}
