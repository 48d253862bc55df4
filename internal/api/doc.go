// Package api exposes the agent over HTTP: a buffered chat endpoint, a
// server-sent-events stream of agent fragments, health and metrics routes.
package api
