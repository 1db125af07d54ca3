// Package api provides the HTTP REST API and WebSocket push for the device
// service.
//
// Routes are served by chi. Device routes require a bearer JWT issued by
// /api/register or /api/login; deleting a device additionally requires the
// admin role, as does reading the audit trail at /api/audit. Every registry change, local or replicated from a peer, is
// pushed to connected websocket clients.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
