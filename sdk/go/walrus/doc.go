// Package walrus is a small Go client for the Walrus agent HTTP API. It wraps
// the buffered chat endpoint and consumes the server-sent-events stream as an
// iterator of fragments.
package walrus
