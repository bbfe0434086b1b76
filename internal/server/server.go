package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/sheero-ai/sheero/internal/auth"
	"github.com/sheero-ai/sheero/internal/fusion"
	"github.com/sheero-ai/sheero/internal/signal"
	"github.com/sheero-ai/sheero/internal/telemetry"
)

// Server wraps the HTTP signal ingestion and state surface for Sheero.
type Server struct {
	mux    *http.ServeMux
	norm   *signal.Normalizer
	engine *fusion.Engine
	authz  *auth.Auth
	tel    *telemetry.Provider
	start  time.Time
}

// New creates a new Sheero server with all routes registered.
func New(norm *signal.Normalizer, engine *fusion.Engine, authz *auth.Auth, tel *telemetry.Provider) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:    mux,
		norm:   norm,
		engine: engine,
		authz:  authz,
		tel:    tel,
		start:  time.Now(),
	}

	mux.HandleFunc("/v1/signal/vision", s.handleVision)
	mux.HandleFunc("/v1/signal/turn", s.handleTurn)
	mux.HandleFunc("/v1/signal/audio", s.handleAudio)
	mux.HandleFunc("/v1/signal/ultrasonic", s.handleUltrasonic)
	mux.HandleFunc("/v1/state", s.handleState)
	mux.HandleFunc("/healthz", s.handleHealth)

	return s
}

// Handler returns the root http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// checkSignalRequest enforces method and bearer auth on the ingestion routes.
func (s *Server) checkSignalRequest(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if !s.authz.Allow(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

type visionRequest struct {
	EyeAspectRatio      float64 `json:"eye_aspect_ratio"`
	HeadBowDelta        float64 `json:"head_bow_delta"`
	SteeringIntentAngle float64 `json:"steering_intent_angle"`
}

func (s *Server) handleVision(w http.ResponseWriter, r *http.Request) {
	if !s.checkSignalRequest(w, r) {
		return
	}

	var reqBody visionRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	err := s.norm.OfferMetric(signal.DriverMetric{
		EyeAspectRatio:      reqBody.EyeAspectRatio,
		HeadBowDelta:        reqBody.HeadBowDelta,
		SteeringIntentAngle: reqBody.SteeringIntentAngle,
	})
	s.finishSignal(w, signal.SourceVision, err)
}

type turnRequest struct {
	Direction string `json:"direction"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if !s.checkSignalRequest(w, r) {
		return
	}

	var reqBody turnRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	dir, err := signal.ParseTurnDirection(reqBody.Direction)
	if err != nil {
		s.tel.SignalMalformed(signal.SourceTurnSignal.String())
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.finishSignal(w, signal.SourceTurnSignal, s.norm.OfferTurn(dir))
}

type audioRequest struct {
	Amplitude    float64 `json:"amplitude"`
	KeywordMatch bool    `json:"keyword_match"`
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if !s.checkSignalRequest(w, r) {
		return
	}

	var reqBody audioRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	err := s.norm.OfferStress(signal.StressCue{
		Amplitude:    reqBody.Amplitude,
		KeywordMatch: reqBody.KeywordMatch,
	})
	s.finishSignal(w, signal.SourceAudio, err)
}

type ultrasonicRequest struct {
	Flank     string    `json:"flank"`
	Distances []float64 `json:"distances_cm"`
}

func (s *Server) handleUltrasonic(w http.ResponseWriter, r *http.Request) {
	if !s.checkSignalRequest(w, r) {
		return
	}

	var reqBody ultrasonicRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	flank, err := signal.ParseFlank(reqBody.Flank)
	if err != nil {
		s.tel.SignalMalformed(signal.SourceUltrasonic.String())
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(reqBody.Distances) != signal.SensorsPerFlank {
		s.tel.SignalMalformed(signal.SourceUltrasonic.String())
		http.Error(w, "distances_cm must carry one value per sensor", http.StatusBadRequest)
		return
	}

	for i, cm := range reqBody.Distances {
		err := s.norm.OfferProximity(signal.ProximityReading{
			Flank:      flank,
			Sensor:     i,
			DistanceCm: cm,
		})
		if err != nil {
			s.finishSignal(w, signal.SourceUltrasonic, err)
			return
		}
	}
	s.finishSignal(w, signal.SourceUltrasonic, nil)
}

// finishSignal writes the accept/reject response for an ingestion request.
// Malformed readings are a client error; everything else is accepted.
func (s *Server) finishSignal(w http.ResponseWriter, source signal.Source, err error) {
	if err != nil {
		var malformed *signal.MalformedSignalError
		if errors.As(err, &malformed) {
			s.tel.SignalMalformed(source.String())
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("signal %s: %v", source, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.tel.SignalReceived(source.String())
	w.WriteHeader(http.StatusAccepted)
}

type stateResponse struct {
	Hazards fusion.HazardState `json:"hazards"`
	Summary string             `json:"summary"`
	Uptime  string             `json:"uptime"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := s.engine.Snapshot()
	resp := stateResponse{
		Hazards: state,
		Summary: state.Summary(),
		Uptime:  time.Since(s.start).Truncate(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("failed to write state response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("failed to write health response: %v", err)
	}
}
