// Package portal implements the provisioning portal.
//
// AutoConnect first tries the stored credentials. When that fails it starts
// a session: an HTTP server on Config.Addr, optionally advertised over mDNS
// as _wifiprov._tcp, exposing
//
//	GET  /params   registered fields and their current values
//	POST /save     {"ssid": ..., "password": ..., "values": {id: value}}
//	GET  /events   websocket stream of StatusEvent messages
//
// A save stores the submitted values (clipped to each field's buffer size),
// runs the save callback and then joins the submitted network. A failed join
// leaves the session open for another try. The session ends after a
// successful join, after Config.Timeout, or when the context is done.
package portal
