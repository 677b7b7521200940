package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"roomcast/internal/announcer"
	"roomcast/internal/config"
	"roomcast/internal/db"
	"roomcast/internal/maintenance"
	"roomcast/internal/metrics"
	"roomcast/internal/momentum"
	"roomcast/internal/protocol"
	"roomcast/internal/rooms"
	"roomcast/internal/router"
	"roomcast/internal/stage"
	"roomcast/internal/telemetry"
	"roomcast/internal/wshub"
)

type Server struct {
	Cfg        config.Config
	Registry   *rooms.Registry
	Hub        *wshub.Hub
	Pipeline   *telemetry.Pipeline
	Window     *maintenance.Window
	Protection *maintenance.ProtectionMonitor
	Safemode   *maintenance.Safemode
	Router     *router.Router

	DB          *db.DB              // nil if no database configured
	EventBuffer chan db.EventRecord // nil if no database configured

	joins joinThrottle
}

// NewServer wires the in-memory stores for one node. Database attachment
// and the scheduler are added by Run.
func NewServer(cfg config.Config) *Server {
	return &Server{
		Cfg:        cfg,
		Registry:   rooms.NewRegistry(cfg.MaxActiveRooms),
		Hub:        wshub.NewHub(),
		Pipeline:   telemetry.NewPipeline(),
		Window:     maintenance.NewWindow(),
		Protection: maintenance.NewProtectionMonitor(float64(cfg.TickP95WarnMs), cfg.TickOverrunWarn),
		Safemode:   &maintenance.Safemode{},
		Router:     router.New(cfg.NodeID, cfg.RouterNodes),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] Encode error: %v\n", err)
	}
}

func writeErr(w http.ResponseWriter, status int, op, roomCode string, code protocol.ErrorCode, message string, retryAfterMs int64) {
	writeJSON(w, status, protocol.Err(op, roomCode, "", time.Now().UnixMilli(), &protocol.WireError{
		Code:         code,
		Message:      message,
		RetryAfterMs: retryAfterMs,
	}))
}

// maintenanceCode maps a blocking maintenance state to its wire code.
func maintenanceCode(state maintenance.State) protocol.ErrorCode {
	if state == maintenance.StateMaintenance {
		return protocol.ErrMaintenance
	}
	return protocol.ErrDraining
}

// resolveRoom checks node authority for the path's room code and loads
// the room. Writes the error response itself when the request must stop.
func (s *Server) resolveRoom(w http.ResponseWriter, req *http.Request, op string) (*rooms.Room, bool) {
	code := rooms.NormalizeCode(req.PathValue("code"))
	if !s.Router.CheckRequest(w, req, code) {
		return nil, false
	}
	room := s.Registry.Get(code)
	if room == nil {
		writeErr(w, http.StatusNotFound, op, code, protocol.ErrRoomNotFound, "Room "+code+" not found.", 0)
		return nil, false
	}
	return room, true
}

func decodeBody(req *http.Request, v any) error {
	err := json.NewDecoder(req.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, req *http.Request) {
	if s.Window.BlocksJoins() {
		state := s.Window.State()
		writeErr(w, http.StatusServiceUnavailable, "room.create", "", maintenanceCode(state), "Node is "+string(state)+".", 0)
		return
	}

	var body struct {
		RoomCode string `json:"roomCode"`
	}
	if err := decodeBody(req, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "room.create", "", protocol.ErrInvalidRequest, "Invalid JSON body.", 0)
		return
	}

	nowMs := time.Now().UnixMilli()
	var room *rooms.Room
	var err error
	if body.RoomCode != "" {
		code := rooms.NormalizeCode(body.RoomCode)
		if !s.Router.CheckRequest(w, req, code) {
			return
		}
		room, err = s.Registry.Create(code, nowMs)
	} else {
		room, err = s.createOwnedRoom(nowMs)
	}
	if errors.Is(err, rooms.ErrCapReached) {
		writeErr(w, http.StatusServiceUnavailable, "room.create", body.RoomCode, protocol.ErrRoomCapReached, "Room capacity reached on this node.", 0)
		return
	}
	if err != nil {
		log.Printf("[Server] Create room error: %v\n", err)
		writeErr(w, http.StatusInternalServerError, "room.create", body.RoomCode, protocol.ErrNodeUnavailable, "Failed to create room.", 0)
		return
	}

	log.Printf("[Server] Created room %s\n", room.Code)
	writeJSON(w, http.StatusCreated, protocol.OK("room.created", room.Code, room.MatchID(), nowMs, room.Summary()))
}

// createOwnedRoom generates codes until one routes to this node.
func (s *Server) createOwnedRoom(nowMs int64) (*rooms.Room, error) {
	for range 20 {
		code, err := rooms.GenerateCode()
		if err != nil {
			return nil, err
		}
		if !s.Router.Owns(code) {
			continue
		}
		return s.Registry.Create(code, nowMs)
	}
	return nil, errors.New("failed to generate a locally routed room code")
}

func (s *Server) handleListRooms(w http.ResponseWriter, req *http.Request) {
	list := s.Registry.List()
	summaries := make([]rooms.Summary, 0, len(list))
	for _, room := range list {
		summaries = append(summaries, room.Summary())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"stats": s.Registry.Stats(),
		"rooms": summaries,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "room.snapshot")
	if !ok {
		return
	}
	safemodeOn, safemodeReason := s.Safemode.Status()
	data := map[string]any{
		"room":       room.Summary(),
		"protection": s.Protection.Mode(),
		"safemode":   map[string]any{"enabled": safemodeOn, "reason": safemodeReason},
	}
	writeJSON(w, http.StatusOK, protocol.OK("room.snapshot", room.Code, room.MatchID(), time.Now().UnixMilli(), data))
}

func (s *Server) handleDestroyRoom(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "room.destroy")
	if !ok {
		return
	}
	nowMs := time.Now().UnixMilli()
	s.Hub.Broadcast(room.Code, protocol.OK("room.closed", room.Code, room.MatchID(), nowMs, nil))
	s.Registry.Destroy(room.Code)
	s.Pipeline.ClearRoom(room.Code)
	log.Printf("[Server] Destroyed room %s\n", room.Code)
	writeJSON(w, http.StatusOK, protocol.OK("room.destroyed", room.Code, "", nowMs, nil))
}

func (s *Server) handleIngest(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "telemetry.ack")
	if !ok {
		return
	}
	if s.Window.BlocksMutations() {
		writeErr(w, http.StatusServiceUnavailable, "telemetry.ack", room.Code, protocol.ErrMaintenance, "Node is in maintenance.", 0)
		return
	}

	var cand telemetry.Candidate
	if err := json.NewDecoder(req.Body).Decode(&cand); err != nil {
		writeErr(w, http.StatusBadRequest, "telemetry.ack", room.Code, protocol.ErrInvalidRequest, "Invalid JSON body.", 0)
		return
	}
	if !telemetry.ValidType(cand.Type) {
		writeErr(w, http.StatusBadRequest, "telemetry.ack", room.Code, protocol.ErrInvalidRequest, "Unknown event type "+string(cand.Type)+".", 0)
		return
	}
	if cand.MatchID == "" {
		cand.MatchID = room.MatchID()
	}

	nowMs := time.Now().UnixMilli()
	res := s.Pipeline.Ingest(nowMs, room.Code, cand)
	switch {
	case res.Rejected:
		metrics.TelemetryRejected.WithLabelValues(string(res.Code)).Inc()
		writeErr(w, http.StatusTooManyRequests, "telemetry.ack", room.Code, res.Code, "Telemetry rejected.", res.RetryAfterMs)
	case res.Discarded:
		metrics.TelemetryDiscarded.WithLabelValues(res.DiscardReason).Inc()
		writeJSON(w, http.StatusOK, protocol.OK("telemetry.ack", room.Code, cand.MatchID, nowMs, map[string]any{
			"eventId":   res.EventID,
			"accepted":  false,
			"discarded": true,
			"reason":    res.DiscardReason,
		}))
	default:
		metrics.TelemetryAccepted.Inc()
		s.applyAccepted(room, res.Event)
		writeJSON(w, http.StatusOK, protocol.OK("telemetry.ack", room.Code, cand.MatchID, nowMs, map[string]any{
			"eventId":  res.EventID,
			"accepted": true,
		}))
	}
}

// applyAccepted folds an admitted event into the room and fans the side
// effects out to viewers and the optional archive buffer.
func (s *Server) applyAccepted(room *rooms.Room, ev telemetry.Event) {
	out := room.ApplyAccepted(ev)

	s.Hub.Broadcast(room.Code, protocol.OK("moment.added", room.Code, ev.MatchID, ev.Ts, out.Moment))
	s.Hub.Broadcast(room.Code, protocol.OK("room.heat", room.Code, ev.MatchID, ev.Ts, map[string]any{"heat": out.Heat}))
	if out.ScoreUpdated {
		s.Hub.Broadcast(room.Code, protocol.OK("score.update", room.Code, ev.MatchID, ev.Ts, map[string]any{
			"scoreA": out.ScoreA,
			"scoreB": out.ScoreB,
		}))
	}
	if out.Callout != nil {
		metrics.Callouts.Inc()
		s.Hub.Broadcast(room.Code, protocol.OK("announcer.callout", room.Code, ev.MatchID, ev.Ts, out.Callout))
	}

	if s.EventBuffer != nil {
		select {
		case s.EventBuffer <- db.EventRecord{
			EventID:       ev.ID,
			RoomCode:      ev.RoomCode,
			MatchID:       ev.MatchID,
			ParticipantID: ev.ParticipantID,
			EventType:     string(ev.Type),
			Intensity:     ev.Intensity,
			Ts:            ev.Ts,
			StatDelta:     ev.StatDelta,
		}:
		default:
			log.Println("[DB] Event buffer full, dropping event")
		}
	}
}

func (s *Server) handleMatchStart(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "match.started")
	if !ok {
		return
	}
	if s.Window.BlocksMutations() {
		writeErr(w, http.StatusServiceUnavailable, "match.started", room.Code, protocol.ErrMaintenance, "Node is in maintenance.", 0)
		return
	}

	var body struct {
		CrewA      string `json:"crewA"`
		CrewB      string `json:"crewB"`
		DurationMs int64  `json:"durationMs"`
	}
	if err := decodeBody(req, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "match.started", room.Code, protocol.ErrInvalidRequest, "Invalid JSON body.", 0)
		return
	}

	nowMs := time.Now().UnixMilli()
	matchID, err := room.StartMatch(nowMs, body.CrewA, body.CrewB, body.DurationMs)
	if err != nil {
		writeErr(w, http.StatusConflict, "match.started", room.Code, protocol.ErrInvalidRequest, err.Error(), 0)
		return
	}

	env := protocol.OK("match.started", room.Code, matchID, nowMs, room.Summary())
	s.Hub.Broadcast(room.Code, env)
	log.Printf("[Server] Match %s started in room %s\n", matchID, room.Code)
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleMatchEnd(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "match.ended")
	if !ok {
		return
	}
	if s.Window.BlocksMutations() {
		writeErr(w, http.StatusServiceUnavailable, "match.ended", room.Code, protocol.ErrMaintenance, "Node is in maintenance.", 0)
		return
	}

	nowMs := time.Now().UnixMilli()
	result, err := room.EndMatch(nowMs)
	if err != nil {
		writeErr(w, http.StatusConflict, "match.ended", room.Code, protocol.ErrInvalidRequest, err.Error(), 0)
		return
	}

	env := protocol.OK("match.ended", room.Code, result.MatchID, nowMs, result)
	s.Hub.Broadcast(room.Code, env)

	if s.DB != nil {
		rec := db.MatchRecord{
			ID:             result.MatchID,
			RoomCode:       room.Code,
			Winner:         result.Winner,
			ScoreA:         result.ScoreA.Total,
			ScoreB:         result.ScoreB.Total,
			BroadcastScore: result.BroadcastScore,
			BroadcastTier:  string(result.BroadcastTier),
			SwingCount:     result.SwingCount,
			StartedAt:      time.UnixMilli(result.StartedAtMs),
			EndedAt:        time.UnixMilli(result.EndedAtMs),
		}
		sum := room.Summary()
		rec.CrewA = sum.CrewA
		rec.CrewB = sum.CrewB
		if err := s.DB.RecordMatch(rec); err != nil {
			log.Printf("[DB] RecordMatch error: %v\n", err)
		}
	}

	// Archival runs on a short delay so the final broadcasts drain first.
	code := room.Code
	time.AfterFunc(250*time.Millisecond, func() {
		if err := room.Archive(); err != nil {
			log.Printf("[Server] Archive error for room %s: %v\n", code, err)
		}
		s.Pipeline.ClearRoom(code)
	})

	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleMoments(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "room.moments")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, protocol.OK("room.moments", room.Code, room.MatchID(), time.Now().UnixMilli(), map[string]any{
		"moments": room.Moments(),
	}))
}

func (s *Server) handleRecap(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "room.recap")
	if !ok {
		return
	}
	sum := room.Summary()

	mvp := ""
	mvpVotes := 0
	for id, n := range room.Votes() {
		if n > mvpVotes || (n == mvpVotes && mvp != "" && id < mvp) {
			mvp, mvpVotes = id, n
		}
	}

	hottest := ""
	var peak float64
	for id, h := range room.Heat() {
		if h > peak || (h == peak && hottest != "" && id < hottest) {
			hottest, peak = id, h
		}
	}

	var best *rooms.Moment
	for _, m := range room.Moments() {
		if m.Type != "GAME_EVENT" {
			continue
		}
		if best == nil || m.Intensity > best.Intensity {
			b := m
			best = &b
		}
	}

	winner := ""
	if sum.MatchStatus == rooms.MatchEnded {
		winner = sum.CrewA
		if sum.ScoreB.Total > sum.ScoreA.Total {
			winner = sum.CrewB
		}
	}

	writeJSON(w, http.StatusOK, protocol.OK("room.recap", room.Code, room.MatchID(), time.Now().UnixMilli(), map[string]any{
		"winner":         winner,
		"mvp":            mvp,
		"mvpVotes":       mvpVotes,
		"hottest":        hottest,
		"bestMoment":     best,
		"broadcastScore": sum.BroadcastScore,
		"broadcastTier":  sum.BroadcastTier,
		"scoreA":         sum.ScoreA,
		"scoreB":         sum.ScoreB,
	}))
}

func (s *Server) handleRoster(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "room.roster")
	if !ok {
		return
	}
	var body struct {
		ParticipantID string `json:"participantId"`
		Crew          string `json:"crew"`
	}
	if err := decodeBody(req, &body); err != nil || body.ParticipantID == "" {
		writeErr(w, http.StatusBadRequest, "room.roster", room.Code, protocol.ErrInvalidRequest, "participantId is required.", 0)
		return
	}
	var team momentum.Team
	switch body.Crew {
	case "A":
		team = momentum.TeamA
	case "B":
		team = momentum.TeamB
	default:
		writeErr(w, http.StatusBadRequest, "room.roster", room.Code, protocol.ErrInvalidRequest, "crew must be A or B.", 0)
		return
	}
	room.AssignTeam(body.ParticipantID, team)
	writeJSON(w, http.StatusOK, protocol.OK("room.roster", room.Code, room.MatchID(), time.Now().UnixMilli(), map[string]any{
		"participantId": body.ParticipantID,
		"crew":          body.Crew,
	}))
}

func (s *Server) handleSettings(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "room.settings")
	if !ok {
		return
	}
	var body struct {
		Vibe       *string `json:"vibe"`
		FamilyMode *bool   `json:"familyMode"`
		AudioFocus *string `json:"audioFocus"`
		WatchStage *bool   `json:"watchStage"`
	}
	if err := decodeBody(req, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "room.settings", room.Code, protocol.ErrInvalidRequest, "Invalid JSON body.", 0)
		return
	}
	if body.Vibe != nil {
		v := announcer.Vibe(*body.Vibe)
		if !announcer.ValidVibe(v) {
			writeErr(w, http.StatusBadRequest, "room.settings", room.Code, protocol.ErrInvalidRequest, "Unknown vibe "+*body.Vibe+".", 0)
			return
		}
		room.SetVibe(v)
	}
	if body.FamilyMode != nil {
		room.SetFamilyMode(*body.FamilyMode)
	}
	if body.AudioFocus != nil {
		room.SetAudioFocus(*body.AudioFocus)
	}
	if body.WatchStage != nil {
		room.SetWatchStage(*body.WatchStage)
	}
	writeJSON(w, http.StatusOK, protocol.OK("room.settings", room.Code, room.MatchID(), time.Now().UnixMilli(), nil))
}

func (s *Server) broadcastDirector(room *rooms.Room, nowMs int64) {
	s.Hub.Broadcast(room.Code, protocol.OK("stage.director", room.Code, room.MatchID(), nowMs, room.DirectorState()))
}

func (s *Server) handleStageLock(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "stage.director")
	if !ok {
		return
	}
	var body struct {
		Mode string `json:"mode"`
	}
	if err := decodeBody(req, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "stage.director", room.Code, protocol.ErrInvalidRequest, "Invalid JSON body.", 0)
		return
	}
	mode := stage.Mode(body.Mode)
	if !stage.ValidMode(mode) {
		writeErr(w, http.StatusBadRequest, "stage.director", room.Code, protocol.ErrInvalidRequest, "Unknown stage mode "+body.Mode+".", 0)
		return
	}
	nowMs := time.Now().UnixMilli()
	room.LockStage(mode)
	room.PushAutomation(nowMs, "director", "stage locked to "+body.Mode)
	s.broadcastDirector(room, nowMs)
	writeJSON(w, http.StatusOK, protocol.OK("stage.director", room.Code, room.MatchID(), nowMs, room.DirectorState()))
}

func (s *Server) handleStageAuto(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "stage.director")
	if !ok {
		return
	}
	nowMs := time.Now().UnixMilli()
	room.AutoStage()
	room.PushAutomation(nowMs, "director", "stage returned to auto")
	s.broadcastDirector(room, nowMs)
	writeJSON(w, http.StatusOK, protocol.OK("stage.director", room.Code, room.MatchID(), nowMs, room.DirectorState()))
}

func (s *Server) handleStageFeature(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "stage.director")
	if !ok {
		return
	}
	var body struct {
		ParticipantID string `json:"participantId"`
	}
	if err := decodeBody(req, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "stage.director", room.Code, protocol.ErrInvalidRequest, "Invalid JSON body.", 0)
		return
	}
	nowMs := time.Now().UnixMilli()
	room.ForceFeature(body.ParticipantID)
	if body.ParticipantID == "" {
		room.PushAutomation(nowMs, "director", "feature spotlight cleared")
	} else {
		room.PushAutomation(nowMs, "director", "feature spotlight on "+body.ParticipantID)
	}
	s.broadcastDirector(room, nowMs)
	writeJSON(w, http.StatusOK, protocol.OK("stage.director", room.Code, room.MatchID(), nowMs, room.DirectorState()))
}

func (s *Server) handleStagePin(w http.ResponseWriter, req *http.Request) {
	room, ok := s.resolveRoom(w, req, "stage.director")
	if !ok {
		return
	}
	var body struct {
		ParticipantIDs []string `json:"participantIds"`
	}
	if err := decodeBody(req, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "stage.director", room.Code, protocol.ErrInvalidRequest, "Invalid JSON body.", 0)
		return
	}
	nowMs := time.Now().UnixMilli()
	room.PinParticipants(body.ParticipantIDs)
	room.PushAutomation(nowMs, "director", "pinned participants updated")
	s.broadcastDirector(room, nowMs)
	writeJSON(w, http.StatusOK, protocol.OK("stage.director", room.Code, room.MatchID(), nowMs, room.DirectorState()))
}

// authorized compares the shared operator secret in constant time.
func (s *Server) authorized(req *http.Request) bool {
	secret := req.Header.Get("X-Admin-Secret")
	return subtle.ConstantTimeCompare([]byte(secret), []byte(s.Cfg.AdminSecret)) == 1
}

func (s *Server) handleMaintenanceSet(w http.ResponseWriter, req *http.Request) {
	if !s.authorized(req) {
		writeErr(w, http.StatusUnauthorized, "ops.maintenance", "", protocol.ErrInvalidRequest, "Unauthorized.", 0)
		return
	}
	var body struct {
		State   string `json:"state"`
		Message string `json:"message"`
	}
	if err := decodeBody(req, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "ops.maintenance", "", protocol.ErrInvalidRequest, "Invalid JSON body.", 0)
		return
	}
	nowMs := time.Now().UnixMilli()
	if err := s.Window.Set(nowMs, maintenance.State(body.State), body.Message); err != nil {
		writeErr(w, http.StatusBadRequest, "ops.maintenance", "", protocol.ErrInvalidRequest, err.Error(), 0)
		return
	}
	state, banner, eta := s.Window.Status(nowMs)
	log.Printf("[Maintenance] State set to %s\n", state)
	writeJSON(w, http.StatusOK, protocol.OK("ops.maintenance", "", "", nowMs, map[string]any{
		"state":      state,
		"banner":     banner,
		"etaSeconds": eta,
	}))
}

func (s *Server) handleSafemodeSet(w http.ResponseWriter, req *http.Request) {
	if !s.authorized(req) {
		writeErr(w, http.StatusUnauthorized, "ops.safemode", "", protocol.ErrInvalidRequest, "Unauthorized.", 0)
		return
	}
	var body struct {
		Enabled bool   `json:"enabled"`
		Reason  string `json:"reason"`
	}
	if err := decodeBody(req, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "ops.safemode", "", protocol.ErrInvalidRequest, "Invalid JSON body.", 0)
		return
	}
	s.Safemode.Set(body.Enabled, body.Reason)
	log.Printf("[Maintenance] Safemode enabled=%v\n", body.Enabled)
	enabled, reason := s.Safemode.Status()
	writeJSON(w, http.StatusOK, protocol.OK("ops.safemode", "", "", time.Now().UnixMilli(), map[string]any{
		"enabled": enabled,
		"reason":  reason,
	}))
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	if s.DB != nil {
		if err := s.DB.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	nowMs := time.Now().UnixMilli()
	state, banner, eta := s.Window.Status(nowMs)
	avgMs, p95Ms, overruns := s.Protection.Stats()
	safemodeOn, safemodeReason := s.Safemode.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"node":  s.Cfg.NodeID,
		"nodes": s.Cfg.RouterNodes,
		"mode":  s.Cfg.Mode,
		"maintenance": map[string]any{
			"state":      state,
			"banner":     banner,
			"etaSeconds": eta,
		},
		"protection": map[string]any{
			"mode":            s.Protection.Mode(),
			"tickAvgMs":       avgMs,
			"tickP95Ms":       p95Ms,
			"overruns":        overruns,
			"p95WarnMs":       s.Cfg.TickP95WarnMs,
			"overrunWarnOver": s.Cfg.TickOverrunWarn,
		},
		"safemode": map[string]any{"enabled": safemodeOn, "reason": safemodeReason},
		"rooms":    s.Registry.Stats(),
	})
}

// clipID mints a short id for operator and viewer created moments.
func clipID() string {
	return uuid.NewString()[:8]
}
