// Package camera keeps programmatic camera moves from feeding back into the app.
//
// A Guard wraps every engine-initiated move. While a move is running, camera events that
// did not come from the user are dropped. User gestures always reach listeners, after a
// short debounce.
//
// RemotePort is the Port used when the map renderer runs in another process: fly-to
// requests are queued for the renderer and FlyTo returns once the renderer reports the
// animation finished.
package camera
