// Toolserver is a stub response backend used for cascade testing.
// It serves the /health and /respond endpoints the engine's toolserver
// backend kind expects.
//
// Usage:
//
//	go run toolserver.go -port 9000
//	go run toolserver.go -port 9000 -fail-rate 0.5 -delay 2s
//
// The -fail-rate flag makes a fraction of /respond calls return transient
// failures, and -unhealthy makes /health return 503, for exercising retries,
// probes, and circuit breakers against a live engine.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"
)

type respondRequest struct {
	RequestID string `json:"request_id"`
	Key       string `json:"key"`
	Message   string `json:"message"`
	System    string `json:"system,omitempty"`
}

type respondResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

func main() {
	port := flag.Int("port", 9000, "port to listen on")
	failRate := flag.Float64("fail-rate", 0, "fraction of /respond calls that fail (0..1)")
	delay := flag.Duration("delay", 0, "artificial delay before each response")
	unhealthy := flag.Bool("unhealthy", false, "make /health report 503")
	flag.Parse()

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if *unhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/respond", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req respondRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		log.Printf("request: id=%s key=%s message=%q", req.RequestID, req.Key, req.Message)

		if *delay > 0 {
			time.Sleep(*delay)
		}

		w.Header().Set("Content-Type", "application/json")

		var resp respondResponse
		if rand.Float64() < *failRate {
			resp = respondResponse{Success: false, Error: "connection reset by simulated outage"}
		} else {
			resp = respondResponse{
				Success:  true,
				Response: fmt.Sprintf("stub reply to %q for %s", req.Message, req.Key),
			}
		}

		b, _ := json.Marshal(resp)
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting toolserver stub on %s (fail-rate=%.2f)", addr, *failRate)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
