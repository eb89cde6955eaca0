// Package server exposes the HTTP control and monitoring API: session
// start/stop, live transcript access and export, statistics, Prometheus
// metrics, and a WebSocket feed of finalized sentences.
package server
