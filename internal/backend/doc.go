// Package backend defines the capability contract consumed by the response
// cascade (availability probe + respond call) and the concrete backends: the
// remote tool-use server, the Anthropic and OpenAI APIs, and the canned
// template responder. Backends are built through an explicit factory registry;
// nothing registers itself at import time.
package backend
