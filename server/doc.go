// Package server exposes the engine over a JSON HTTP API.
//
// The map renderer posts user actions (selection, map clicks, camera moves) and polls
// the selection state. Camera fly-to requests are queued on a camera.RemotePort; the
// renderer fetches them from /api/camera/requests and acknowledges each one when its
// animation has finished.
package server
