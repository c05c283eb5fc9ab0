// Package persona loads persona definitions from JSON files, routes messages
// to a persona by regex matching, and renders the persona's system prompt
// template. All patterns and templates are compiled at load time.
package persona
