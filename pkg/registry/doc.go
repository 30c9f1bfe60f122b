// Package registry maps task identities to their futures.
//
// Entries are kept in registration order and a read removes the entry it
// returns, so each handle is handed out at most once. The key is the task ID,
// never the task's contents. Consistency between the ordered list and its
// index is checked on every unlock when syncutil invariant checking is
// enabled.
package registry
