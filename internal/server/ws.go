package server

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"roomcast/internal/metrics"
	"roomcast/internal/protocol"
	"roomcast/internal/rooms"
	"roomcast/internal/telemetry"
	"roomcast/internal/wshub"
)

const (
	joinWindowMs = 10_000
	joinLimit    = 20
)

// joinThrottle caps WebSocket join attempts per source IP.
type joinThrottle struct {
	mu   sync.Mutex
	hits map[string][]int64
}

func (t *joinThrottle) allow(nowMs int64, ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hits == nil {
		t.hits = make(map[string][]int64)
	}
	kept := t.hits[ip][:0]
	for _, ts := range t.hits[ip] {
		if nowMs-ts < joinWindowMs {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= joinLimit {
		t.hits[ip] = kept
		return false
	}
	t.hits[ip] = append(kept, nowMs)
	return true
}

func clientIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

func (s *Server) handleWS(w http.ResponseWriter, req *http.Request) {
	nowMs := time.Now().UnixMilli()
	if !s.joins.allow(nowMs, clientIP(req)) {
		writeErr(w, http.StatusTooManyRequests, "viewer.join", "", protocol.ErrRateLimited, "Too many join attempts.", joinWindowMs)
		return
	}
	if s.Window.BlocksJoins() {
		state := s.Window.State()
		writeErr(w, http.StatusServiceUnavailable, "viewer.join", "", maintenanceCode(state), "Node is "+string(state)+".", 0)
		return
	}

	code := rooms.NormalizeCode(req.PathValue("code"))
	if !s.Router.CheckRequest(w, req, code) {
		return
	}
	room := s.Registry.Get(code)
	if room == nil {
		writeErr(w, http.StatusNotFound, "viewer.join", code, protocol.ErrRoomNotFound, "Room "+code+" not found.", 0)
		return
	}
	if s.Hub.SubscriberCount(code) >= s.Cfg.MaxParticipantsPerRoom {
		writeErr(w, http.StatusServiceUnavailable, "viewer.join", code, protocol.ErrRoomFull, "Room "+code+" is full.", 0)
		return
	}

	conn, err := websocket.Accept(w, req, nil)
	if err != nil {
		log.Printf("[Server] WebSocket accept error: %v\n", err)
		return
	}

	viewerID := req.URL.Query().Get("viewerId")
	if viewerID == "" {
		viewerID = uuid.NewString()
	}
	client := &wshub.Client{
		ViewerID: viewerID,
		RoomCode: room.Code,
		Conn:     conn,
		Send:     make(chan []byte, 64),
	}
	s.Hub.Register(client)
	room.MarkViewer(viewerID, nowMs)
	metrics.ConnectedViewers.Inc()

	ctx := req.Context()
	go client.WritePump(ctx)

	reply(client, protocol.OK("viewer.joined", room.Code, room.MatchID(), nowMs, map[string]any{
		"viewerId": viewerID,
		"room":     room.Summary(),
	}))
	s.Hub.BroadcastExcept(room.Code, viewerID, protocol.OK("presence.update", room.Code, room.MatchID(), nowMs, map[string]any{
		"viewers": s.Hub.SubscriberCount(room.Code),
	}))

	defer func() {
		s.Hub.Unregister(room.Code, viewerID)
		room.DropViewer(viewerID)
		metrics.ConnectedViewers.Dec()
		leftAt := time.Now().UnixMilli()
		s.Hub.Broadcast(room.Code, protocol.OK("presence.update", room.Code, room.MatchID(), leftAt, map[string]any{
			"viewers": s.Hub.SubscriberCount(room.Code),
		}))
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg clientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			reply(client, wireErr(msg, room, protocol.ErrInvalidRequest, "Invalid message.", 0))
			continue
		}
		s.dispatch(room, client, msg)
	}
}

type clientMsg struct {
	Op    string          `json:"op"`
	ReqID string          `json:"reqId"`
	Data  json.RawMessage `json:"data"`
}

// reply queues one envelope on a single client's send channel.
func reply(c *wshub.Client, env protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Server] Marshal error: %v\n", err)
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func wireErr(msg clientMsg, room *rooms.Room, code protocol.ErrorCode, message string, retryAfterMs int64) protocol.Envelope {
	env := protocol.Err(msg.Op, room.Code, room.MatchID(), time.Now().UnixMilli(), &protocol.WireError{
		Code:         code,
		Message:      message,
		RetryAfterMs: retryAfterMs,
	})
	env.ReqID = msg.ReqID
	return env
}

func (s *Server) dispatch(room *rooms.Room, client *wshub.Client, msg clientMsg) {
	nowMs := time.Now().UnixMilli()
	room.MarkViewer(client.ViewerID, nowMs)

	switch msg.Op {
	case "presence.ping":
		env := protocol.OK("presence.pong", room.Code, room.MatchID(), nowMs, nil)
		env.ReqID = msg.ReqID
		reply(client, env)

	case "telemetry.event":
		s.wsTelemetry(room, client, msg, nowMs)

	case "viewer.react", "viewer.vote", "viewer.tap", "viewer.powerup", "viewer.emoji":
		s.wsViewerAction(room, client, msg, nowMs)

	case "chat.message":
		var body struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Data, &body); err != nil || body.Text == "" {
			reply(client, wireErr(msg, room, protocol.ErrInvalidRequest, "text is required.", 0))
			return
		}
		s.Hub.BroadcastExcept(room.Code, client.ViewerID, protocol.OK("chat.message", room.Code, room.MatchID(), nowMs, map[string]any{
			"from": client.ViewerID,
			"text": body.Text,
		}))

	case "clip.mark":
		var body struct {
			Label string `json:"label"`
		}
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &body); err != nil {
				reply(client, wireErr(msg, room, protocol.ErrInvalidRequest, "Invalid message.", 0))
				return
			}
		}
		if body.Label == "" {
			body.Label = "Clip marked"
		}
		moment := rooms.Moment{
			ID:            clipID(),
			Ts:            nowMs,
			Type:          "CLIP",
			Label:         body.Label,
			ParticipantID: client.ViewerID,
		}
		room.RecordMoment(moment)
		s.Hub.Broadcast(room.Code, protocol.OK("moment.added", room.Code, room.MatchID(), nowMs, moment))

	default:
		reply(client, wireErr(msg, room, protocol.ErrInvalidRequest, "Unknown op "+msg.Op+".", 0))
	}
}

func (s *Server) wsTelemetry(room *rooms.Room, client *wshub.Client, msg clientMsg, nowMs int64) {
	if s.Window.BlocksMutations() {
		reply(client, wireErr(msg, room, protocol.ErrMaintenance, "Node is in maintenance.", 0))
		return
	}
	var cand telemetry.Candidate
	if err := json.Unmarshal(msg.Data, &cand); err != nil || !telemetry.ValidType(cand.Type) {
		reply(client, wireErr(msg, room, protocol.ErrInvalidRequest, "Invalid telemetry event.", 0))
		return
	}
	if cand.MatchID == "" {
		cand.MatchID = room.MatchID()
	}

	res := s.Pipeline.Ingest(nowMs, room.Code, cand)
	switch {
	case res.Rejected:
		metrics.TelemetryRejected.WithLabelValues(string(res.Code)).Inc()
		reply(client, wireErr(msg, room, res.Code, "Telemetry rejected.", res.RetryAfterMs))
	case res.Discarded:
		metrics.TelemetryDiscarded.WithLabelValues(res.DiscardReason).Inc()
		env := protocol.OK("telemetry.ack", room.Code, cand.MatchID, nowMs, map[string]any{
			"eventId":   res.EventID,
			"accepted":  false,
			"discarded": true,
			"reason":    res.DiscardReason,
		})
		env.ReqID = msg.ReqID
		reply(client, env)
	default:
		metrics.TelemetryAccepted.Inc()
		s.applyAccepted(room, res.Event)
		env := protocol.OK("telemetry.ack", room.Code, cand.MatchID, nowMs, map[string]any{
			"eventId":  res.EventID,
			"accepted": true,
		})
		env.ReqID = msg.ReqID
		reply(client, env)
	}
}

// Viewer action budgets: capacity plus refill per second.
var viewerBudgets = map[string]struct {
	capacity float64
	refill   float64
}{
	"viewer.react":   {capacity: 6, refill: 6},
	"viewer.vote":    {capacity: 3, refill: 2},
	"viewer.tap":     {capacity: 3, refill: 2},
	"viewer.powerup": {capacity: 2, refill: 0.2},
	"viewer.emoji":   {capacity: 12, refill: 12},
}

func (s *Server) wsViewerAction(room *rooms.Room, client *wshub.Client, msg clientMsg, nowMs int64) {
	// Votes stay open under safe mode; only the noisy actions pause.
	if s.Safemode.Enabled() && msg.Op != "viewer.vote" {
		reply(client, wireErr(msg, room, protocol.ErrSafeModeActive, "Viewer actions are paused.", 2_000))
		return
	}

	budget := viewerBudgets[msg.Op]
	key := room.Code + ":viewer:" + client.ViewerID + ":" + msg.Op
	if !s.Pipeline.ViewerAllow(nowMs, key, budget.capacity, budget.refill) {
		reply(client, wireErr(msg, room, protocol.ErrRateLimited, "Slow down.", 500))
		return
	}
	room.RecordInteraction(client.ViewerID)

	switch msg.Op {
	case "viewer.react":
		var body struct {
			Kind string `json:"kind"`
		}
		json.Unmarshal(msg.Data, &body)
		s.Hub.Broadcast(room.Code, protocol.OK("crowd.react", room.Code, room.MatchID(), nowMs, map[string]any{
			"viewerId": client.ViewerID,
			"kind":     body.Kind,
		}))

	case "viewer.vote":
		var body struct {
			Option string `json:"option"`
		}
		if err := json.Unmarshal(msg.Data, &body); err != nil || body.Option == "" {
			reply(client, wireErr(msg, room, protocol.ErrInvalidRequest, "option is required.", 0))
			return
		}
		tally := room.Vote(body.Option)
		s.Hub.Broadcast(room.Code, protocol.OK("crowd.vote", room.Code, room.MatchID(), nowMs, map[string]any{
			"votes": tally,
		}))

	case "viewer.tap":
		total, hype := room.CrowdTap()
		if hype {
			s.Hub.Broadcast(room.Code, protocol.OK("crowd.hype", room.Code, room.MatchID(), nowMs, map[string]any{
				"taps": total,
			}))
		}

	case "viewer.powerup":
		if !room.PowerupAllow(nowMs, client.ViewerID) {
			reply(client, wireErr(msg, room, protocol.ErrRateLimited, "Power-up on cooldown.", 8_000))
			return
		}
		var body struct {
			Kind string `json:"kind"`
		}
		json.Unmarshal(msg.Data, &body)
		s.Hub.Broadcast(room.Code, protocol.OK("crowd.powerup", room.Code, room.MatchID(), nowMs, map[string]any{
			"viewerId": client.ViewerID,
			"kind":     body.Kind,
		}))

	case "viewer.emoji":
		if !room.EmojiAllow(nowMs) {
			reply(client, wireErr(msg, room, protocol.ErrRateLimited, "Emoji budget exhausted.", 1_000))
			return
		}
		var body struct {
			Emoji string `json:"emoji"`
		}
		json.Unmarshal(msg.Data, &body)
		s.Hub.Broadcast(room.Code, protocol.OK("crowd.emoji", room.Code, room.MatchID(), nowMs, map[string]any{
			"viewerId": client.ViewerID,
			"emoji":    body.Emoji,
		}))
	}
}
