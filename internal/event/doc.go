// Package event defines the wire boundary between the broker and the
// notification engine.
//
// # Inbound payloads
//
// The server pushes JSON bodies that do not carry a type field. A chat
// message names a contactId, a support message names a ticketId, a ticket
// snapshot names neither but carries a subject, and certification alerts only
// arrive on their own admin topic. Decode inspects the topic and the fields
// present and returns an Inbound whose Kind says which variant is populated:
//
//	in, err := event.Decode(topic, body)
//	switch in.Kind {
//	case event.KindChat:
//		handleChat(in.Chat)
//	case event.KindSupport:
//		handleSupport(in.Support)
//	}
//
// A payload naming both a contactId and a ticketId is rejected with
// ErrAmbiguousPayload. A payload matching no variant is rejected with
// ErrUnknownPayload. Callers drop rejected payloads; they never guess.
//
// If the server does send an explicit "kind" field it wins over field
// inspection, as long as the matching identifier is present.
//
// # Identifiers and timestamps
//
// The server emits numeric identifiers and ISO-8601 instants. ID accepts JSON
// numbers or strings and is carried as an opaque string. Time accepts RFC 3339
// strings, epoch milliseconds, or epoch seconds with a fractional part.
//
// # Topics
//
// Topic helpers build the destinations the server routes on. They must match
// the server byte for byte:
//
//	/topic/contacts/{contactId}        chat stream per conversation
//	/app/contacts/{contactId}/messages outbound chat
//	/topic/support/{ticketId}          support stream per ticket
//	/app/support/{ticketId}/messages   outbound support
//	/topic/users/{userId}              per-user notifications
//	/topic/admin/certifications        admin broadcast
//	/topic/admin/support               admin broadcast
package event
