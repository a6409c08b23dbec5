// Package logs holds the client side of log viewing for the scott CLI.
//
// Client speaks to a running server's /api/log endpoints, including the
// server-sent event stream used by `scott log follow`. When no server
// answers, ReadLocal and Tail read files straight from disk so the CLI can
// still show the monitored file and the server's own log.
package logs
