// Package notify reconciles pushed chat and support messages with the
// locally cached conversation list.
//
// A Coordinator owns one user session. Bootstrap seeds the conversation
// registry over REST, raises one catch-up toast for every thread whose last
// activity is newer than its persisted seen marker, then connects the
// broker transport and subscribes to the user's topic (and the admin topics
// for administrators).
//
// Each inbound message is classified as an echo of the user's own message,
// a support message, a chat message, or an admin alert. Echoes and messages
// for the focused thread advance the seen marker without a toast; anything
// else bumps the thread's unread count and enqueues an auto-expiring toast.
//
// All coordinator state is guarded by a single mutex, so transport frames
// and UI calls are applied one at a time in arrival order. Frames from a
// session that has been torn down are ignored.
// State changes are fanned out through Events.
//
// # Known limitation
//
// A non-echo message delivered twice increments unread twice and raises two
// toasts. The live path does not deduplicate by message id.
package notify
