// Package server exposes a running visualizer over HTTP.
//
// # Endpoints
//
//	GET    /healthz          liveness and build info
//	GET    /api/graph        full snapshot as JSON
//	DELETE /api/graph        reset the graph
//	GET    /api/graph.dot    Graphviz DOT of the drawn graph
//	GET    /api/graph.svg    rendered SVG (cached by DOT content)
//	GET    /api/stats        counters and state histogram
//	GET    /api/recent?n=20  newest nodes
//	POST   /api/select       {"id": "..."}; "" clears the selection
//	POST   /api/search       {"pattern": "..."}; "" clears the search
//	PUT    /api/max-items    {"max_items": 500}
//	GET    /ws               websocket render stream
//	GET    /metrics          Prometheus metrics
//
// Mutating endpoints queue the operation and return 202 Accepted; the effect
// is visible in the next snapshot and on the websocket stream.
//
// Errors are returned as {"error": CODE, "message": "..."} with a status
// derived from the error code, see [StatusFor].
package server
