package main

import (
	"net/http"

	"github.com/nkontos/persona-engine/internal/handler"
	"github.com/nkontos/persona-engine/internal/metrics"
)

func setupRouter(chatHandler *handler.Handler, metricsCollector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/chat", chatHandler.Chat)
	mux.HandleFunc("/status", chatHandler.Status)
	mux.HandleFunc("/health", chatHandler.Health)
	mux.HandleFunc("/metrics", metricsCollector.Handler())

	return mux
}
