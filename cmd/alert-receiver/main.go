package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sheero-ai/sheero/internal/alert"
)

func main() {
	addr := flag.String("addr", ":8099", "listen address for alert receiver")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/alert", handleAlert)
	mux.HandleFunc("/", handleAlert)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("alert receiver listening on %s (POST JSON to /alert)...", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("receiver error: %v", err)
	}
}

func handleAlert(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	var ev alert.Event
	if err := json.Unmarshal(body, &ev); err != nil || ev.Kind == "" {
		// Not a dispatcher payload; dump it raw so nothing is lost.
		log.Printf("received non-alert payload: path=%s len=%d\n%s", r.URL.Path, len(body), string(body))
	} else {
		log.Printf("received alert: %s", formatEvent(&ev))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, `{"status":"ok"}`)
}

func formatEvent(ev *alert.Event) string {
	edge := "CLEAR"
	if ev.Active {
		edge = "ACTIVE"
	}
	line := fmt.Sprintf("%-6s %s priority=%s", edge, ev.Kind, priorityLabel(ev.Priority))
	if ev.Flank != "" {
		line += " flank=" + ev.Flank
		if ev.Intensity > 0 {
			line += fmt.Sprintf(" intensity=%d", ev.Intensity)
		}
	}
	return fmt.Sprintf("%s state=[%s] at %s id=%s",
		line, ev.State.Summary(), ev.Timestamp.Format(time.RFC3339Nano), ev.ID)
}

func priorityLabel(p alert.Priority) string {
	switch p {
	case alert.PriorityCritical:
		return "critical"
	case alert.PriorityWarning:
		return "warning"
	case alert.PriorityAdvisory:
		return "advisory"
	default:
		return fmt.Sprintf("%d", int(p))
	}
}
