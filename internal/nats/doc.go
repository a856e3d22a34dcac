// Package nats publishes pipeline events to an external NATS server so
// fleet tooling can consume detections without polling the HTTP API.
//
// # Subject Hierarchy
//
//	perceptd.detections      # Classification results above threshold
//	perceptd.session.state   # Capture session lifecycle changes
//
// The package uses fire-and-forget messaging (core NATS, no JetStream)
// and gracefully degrades to offline mode when the server is
// unreachable; the pipeline never blocks on the broker.
//
// # Useful Debug Commands
//
// Monitor all perceptd messages:
//
//	nats sub "perceptd.>"
//
// Pretty-print detections:
//
//	nats sub "perceptd.detections" | jq .
package nats
