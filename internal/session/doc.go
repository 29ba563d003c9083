// Package session drives one terminal conversation: it reads user lines,
// starts runs on the active thread, polls them to completion and feeds tool
// outputs back while a run requires action.
//
// A turn moves Idle → Submitting → Polling and ends Done, Aborted or in
// error recovery. Error recovery cancels leftover runs and forgets the
// thread, so the next line starts a new conversation.
package session
