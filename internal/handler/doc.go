// Package handler maps the chat, status, and health HTTP endpoints onto the
// engine.
package handler
