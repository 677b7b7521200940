package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"roomcast/internal/config"
	"roomcast/internal/db"
	"roomcast/internal/metrics"
	"roomcast/internal/scheduler"
)

func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	srv := NewServer(cfg)

	// Optional database connection
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Printf("[DB] Failed to connect: %v (running without database)\n", err)
		} else {
			if err := database.Migrate(); err != nil {
				log.Printf("[DB] Migration failed: %v\n", err)
			}
			srv.DB = database
			srv.EventBuffer = make(chan db.EventRecord, 1000)
			go eventBatchWriter(database, srv.EventBuffer)
			log.Println("[DB] Database connected and migrations applied")
		}
	} else {
		log.Println("[DB] DATABASE_URL not set, running without database")
	}

	engine := scheduler.New(cfg, srv.Registry, srv.Hub, srv.Pipeline, srv.Window, srv.Protection, srv.Safemode)
	go engine.Run(context.Background())

	mux := srv.routes()
	addr := "0.0.0.0:" + cfg.Port
	log.Printf("[Server] Node %s (%s) listening on :%s\n", cfg.NodeID, cfg.Mode, cfg.Port)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("GET /api/rooms/{code}", s.handleGetRoom)
	mux.HandleFunc("DELETE /api/rooms/{code}", s.handleDestroyRoom)

	mux.HandleFunc("POST /api/rooms/{code}/event", s.handleIngest)
	mux.HandleFunc("POST /api/rooms/{code}/match/start", s.handleMatchStart)
	mux.HandleFunc("POST /api/rooms/{code}/match/end", s.handleMatchEnd)
	mux.HandleFunc("GET /api/rooms/{code}/moments", s.handleMoments)
	mux.HandleFunc("GET /api/rooms/{code}/recap", s.handleRecap)
	mux.HandleFunc("POST /api/rooms/{code}/roster", s.handleRoster)
	mux.HandleFunc("POST /api/rooms/{code}/settings", s.handleSettings)

	mux.HandleFunc("POST /api/rooms/{code}/stage/lock", s.handleStageLock)
	mux.HandleFunc("POST /api/rooms/{code}/stage/auto", s.handleStageAuto)
	mux.HandleFunc("POST /api/rooms/{code}/stage/feature", s.handleStageFeature)
	mux.HandleFunc("POST /api/rooms/{code}/stage/pin", s.handleStagePin)

	mux.HandleFunc("POST /admin/maintenance", s.handleMaintenanceSet)
	mux.HandleFunc("POST /admin/safemode", s.handleSafemodeSet)

	mux.HandleFunc("GET /ws/{code}", s.handleWS)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func eventBatchWriter(database *db.DB, buffer chan db.EventRecord) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	batch := make([]db.EventRecord, 0, 50)

	for {
		select {
		case ev := <-buffer:
			batch = append(batch, ev)
			if len(batch) >= 50 {
				if err := database.BatchRecordEvents(batch); err != nil {
					log.Printf("[DB] BatchRecordEvents error: %v\n", err)
				}
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				if err := database.BatchRecordEvents(batch); err != nil {
					log.Printf("[DB] BatchRecordEvents error: %v\n", err)
				}
				batch = batch[:0]
			}
		}
	}
}
