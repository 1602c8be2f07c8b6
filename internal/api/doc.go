// Package api is a thin client for the marketplace REST endpoints the
// notification engine reads: the current user, the user's contact threads
// and support tickets.
//
// Every request carries the session token in the X-Auth-Token header.
// Non-2xx responses are returned as *Error with the server's message.
package api
