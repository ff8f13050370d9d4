// Package auth checks the operator keys presented to the gateway's admin API.
//
// An empty KeySet leaves the protected routes open, which suits the default
// loopback listener.
//
//	admin := auth.NewKeySet(cfg.Server.Auth.AdminKeys)
//	mux.Handle("/admin/", auth.Middleware(admin, logger)(adminHandler))
//
// Keys are read from "Authorization: Bearer <key>" or the X-API-Key header.
// Only SHA-256 digests of the configured keys are kept, and every comparison
// runs in constant time. An authenticated request carries a client ID in its
// context: a short fingerprint of the key that is safe to log.
package auth
