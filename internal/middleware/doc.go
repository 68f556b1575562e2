// Package middleware provides HTTP middleware for the giffer API.
//
// It includes:
//   - Access logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - gzip compression of JSON responses
//
// Every wrapper keeps http.Hijacker reachable so WebSocket upgrades pass
// through the chain.
package middleware
