// Package httpapi exposes a store.Store over HTTP.
//
// Routes:
//
//	GET    /state          JSON object of every entry
//	GET    /state/{key}    JSON value, read-through (may recover from the mirror)
//	PUT    /state/{key}    body is a JSON value; ?locked ?persist ?refresh ?destructive
//	DELETE /state/{key}    ?persist ?destructive
//	POST   /touch          ?rewrite
//	GET    /inspect        text dump; ?detailed ?values
//	GET    /watch          websocket, one JSON text frame per broadcast
//	GET    /metrics        Prometheus exposition, when a gatherer is configured
//
// Writes to a locked entry answer 423 Locked. Errors are JSON objects in
// the coded error format:
//
//	{"code":"K010","category":"runtime","message":"Entry is locked",...}
//
// # Usage
//
//	s := store.New(slot)
//	h := httpapi.NewHandler(s, httpapi.WithGatherer(prometheus.DefaultGatherer))
//	http.ListenAndServe(":7070", h)
package httpapi
