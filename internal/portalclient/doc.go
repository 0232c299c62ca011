// Package portalclient submits provisioning values to a running portal.
//
// Requests are retried with exponential backoff while the portal is
// unreachable or answers with a server error. A submission the device could
// not act on (bad request, no session, failed join) is returned at once.
package portalclient
