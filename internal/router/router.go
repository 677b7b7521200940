// Package router assigns room codes to server instances with a stable
// hash and enforces node authority on incoming requests.
package router

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"

	"roomcast/internal/protocol"
)

// NodeHeader carries the caller's expected-node hint.
const NodeHeader = "X-Room-Node"

// Router knows this instance's identity and the full node set. The node
// list must be identical and identically ordered on every instance.
type Router struct {
	NodeID string
	Nodes  []string
}

func New(nodeID string, nodes []string) *Router {
	id := strings.ToUpper(strings.TrimSpace(nodeID))
	normalized := make([]string, 0, len(nodes))
	for _, n := range nodes {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n != "" {
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		normalized = []string{id}
	}
	return &Router{NodeID: id, Nodes: normalized}
}

// SelectNode returns the instance authoritative for a room code. The
// hash is taken over the uppercased code so routing is insensitive to
// the caller's casing.
func (r *Router) SelectNode(roomCode string) string {
	h := xxhash.Sum64String(strings.ToUpper(roomCode))
	return r.Nodes[h%uint64(len(r.Nodes))]
}

// Owns reports whether this instance is authoritative for the code.
func (r *Router) Owns(roomCode string) bool {
	return r.SelectNode(roomCode) == r.NodeID
}

type mismatch struct {
	OK           bool               `json:"ok"`
	Code         protocol.ErrorCode `json:"code"`
	Message      string             `json:"message"`
	RoomCode     string             `json:"roomCode"`
	Node         string             `json:"node"`
	ExpectedNode string             `json:"expectedNode"`
}

// ExpectedNode extracts the routing hint from a 409 mismatch response.
// Returns false when the response is not a node mismatch.
func ExpectedNode(resp *http.Response) (string, bool) {
	if resp.StatusCode != http.StatusConflict {
		return "", false
	}
	var body mismatch
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false
	}
	if body.Code != protocol.ErrRoomNodeMismatch || body.ExpectedNode == "" {
		return "", false
	}
	return body.ExpectedNode, true
}

// DoWithNodeRetry builds and issues a request, and on a node mismatch
// rebuilds it once for the expected node. build receives the node the
// request should target, "" for the caller's default.
func DoWithNodeRetry(client *http.Client, build func(node string) (*http.Request, error)) (*http.Response, error) {
	req, err := build("")
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	node, ok := ExpectedNode(resp)
	if !ok {
		return resp, nil
	}
	resp.Body.Close()

	req, err = build(node)
	if err != nil {
		return nil, err
	}
	req.Header.Set(NodeHeader, node)
	return client.Do(req)
}

// CheckRequest rejects a request whose room code this instance does not
// own, or whose node hint names a different instance. Returns false after
// writing a 409 response when the request must not proceed.
func (r *Router) CheckRequest(w http.ResponseWriter, req *http.Request, roomCode string) bool {
	hinted := strings.ToUpper(req.Header.Get(NodeHeader))
	expected := hinted
	if roomCode != "" {
		expected = r.SelectNode(roomCode)
	}
	if (hinted != "" && hinted != r.NodeID) || (expected != "" && expected != r.NodeID) {
		name := expected
		if name == "" {
			name = hinted
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(mismatch{
			Code:         protocol.ErrRoomNodeMismatch,
			Message:      "Room " + roomCode + " is assigned to node " + name + ".",
			RoomCode:     roomCode,
			Node:         r.NodeID,
			ExpectedNode: name,
		})
		return false
	}
	return true
}
