// Package server provides the HTTP surface of warden: the dispatch
// and discovery endpoints, shared-secret authentication, health
// probes, and a dedicated Prometheus metrics listener.
//
// # Key Components
//
// Server routes POST /mcp/execute_tool and GET /mcp/list_tools behind
// X-API-Key authentication, and GET /health as an open liveness probe.
// Tool calls always answer HTTP 200 with a ToolResponse envelope;
// only the auth layer uses protocol-level error statuses:
//   - 500 when no API key is configured on the server
//   - 401 when the request carries no key
//   - 403 when the key does not match
//
// MetricsServer serves /metrics on its own port so operational metrics
// never share a listener with authenticated application traffic.
package server
