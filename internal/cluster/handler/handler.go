// Package handler exposes the cluster coordinator's HTTP API: topology
// inspection and ad-hoc command dispatch/fan-out over the shard connection
// fabric.
package handler

import (
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"net/http"

	"github.com/shardmesh/searchcore/internal/cluster"
	apperrors "github.com/shardmesh/searchcore/pkg/errors"
	"github.com/shardmesh/searchcore/pkg/logger"
)

// hiddenShardingKey logs a dispatch command's sharding key through
// pkg/logger's obfuscation path. The key is an opaque caller-supplied
// string, not a numeric document id, so the id logger.DocumentKey's
// obfuscated form reports is derived by hashing it.
func hiddenShardingKey(key string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	return logger.DocumentKey(key, h.Sum64())
}

// Handler serves the coordinator's topology and dispatch endpoints.
type Handler struct {
	mgr    *cluster.Manager
	logger *slog.Logger
}

// New creates a Handler over the given cluster Manager.
func New(mgr *cluster.Manager) *Handler {
	return &Handler{mgr: mgr, logger: slog.Default().With("component", "cluster-handler")}
}

type nodeView struct {
	ID       string `json:"id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	IsMaster bool   `json:"is_master"`
	IsSelf   bool   `json:"is_self"`
}

type shardView struct {
	StartSlot int        `json:"start_slot"`
	EndSlot   int        `json:"end_slot"`
	Nodes     []nodeView `json:"nodes"`
}

type topologyView struct {
	NumSlots int         `json:"num_slots"`
	HashFunc string      `json:"hash_func"`
	Shards   []shardView `json:"shards"`
}

// Topology handles GET /api/v1/topology, returning a JSON snapshot of the
// coordinator's current slot-to-shard-to-node mapping.
func (h *Handler) Topology(w http.ResponseWriter, r *http.Request) {
	topo := h.mgr.Topology.Snapshot()
	view := topologyView{NumSlots: topo.NumSlots, HashFunc: topo.HashFunc.String()}
	for _, sh := range topo.Shards {
		sv := shardView{StartSlot: sh.StartSlot, EndSlot: sh.EndSlot}
		for _, n := range sh.Nodes {
			sv.Nodes = append(sv.Nodes, nodeView{
				ID:       n.ID,
				Host:     n.Endpoint.Host,
				Port:     n.Endpoint.Port,
				IsMaster: n.IsMaster(),
				IsSelf:   n.IsSelf(),
			})
		}
		view.Shards = append(view.Shards, sv)
	}
	h.writeJSON(w, http.StatusOK, view)
}

// dispatchRequest describes one ad-hoc command to route and send, or
// multiplex and fan out, over the connection fabric.
type dispatchRequest struct {
	Args           []string `json:"args"`
	ShardingKeyPos int      `json:"sharding_key_pos"`
	TargetSlot     int      `json:"target_slot"`
	Strategy       string   `json:"strategy"`
	Multiplex      bool     `json:"multiplex"`
}

func parseStrategy(s string) cluster.CoordinationStrategy {
	switch s {
	case "remote":
		return cluster.RemoteCoordination
	case "flat":
		return cluster.FlatCoordination
	default:
		return cluster.LocalCoordination
	}
}

// Dispatch handles POST /api/v1/dispatch. With multiplex=false it routes the
// command to a single shard via slot hashing and returns that shard's
// reply. With multiplex=true it rewrites the command into one copy per
// partition (GenDefault) and fans every copy out concurrently, returning one
// reply per partition.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Args) == 0 {
		h.writeError(w, http.StatusBadRequest, "args must not be empty")
		return
	}

	cmd := cluster.NewCommand(req.Args...)
	cmd.ShardingKeyPos = req.ShardingKeyPos
	if req.TargetSlot > 0 {
		cmd.TargetSlot = req.TargetSlot
	}
	strategy := parseStrategy(req.Strategy)

	if !h.mgr.Topology.WaitReady(r.Context(), h.mgr.ValidationTimeout) {
		log.Warn("dispatching against possibly-partial topology: validation timeout elapsed")
	}

	if req.Multiplex {
		replies := h.mgr.DispatchMultiplexed(r.Context(), cmd, cluster.GenDefault, strategy, h.mgr.Pool.ConnsPerShard())
		h.writeJSON(w, http.StatusOK, map[string]any{"replies": replies})
		return
	}

	reply, err := h.mgr.Router.SendCommand(strategy, cmd)
	if err != nil {
		attrs := []any{"command", cmd.Args[0], "error", err}
		if key, ok := cmd.ShardingKey(); ok {
			attrs = append(attrs, "sharding_key", hiddenShardingKey(key))
		}
		log.Warn("dispatch failed", attrs...)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
