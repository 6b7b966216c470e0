// Package http exposes the coordination services as a JSON API for the chat
// platform adapter.
//
// Every route except /healthz and /metrics requires the X-Actor-ID header
// naming the chat user on whose behalf the adapter acts.
//
//   - GET /timezones/validate?zone=: never fails; reports the canonical zone
//     or a user facing message.
//   - GET /profiles/{id}, PUT /profiles/{id}: reminder offsets, working hours
//     and zone of one user (profileDTO in profile_handler.go).
//   - POST /availability, PUT /availability/{id}, DELETE /availability/{id}:
//     busy and available intervals of the acting user. Overlapping busy
//     intervals answer 409 with the conflicting intervals.
//   - GET /availability/conflicts?user=&start=&end=, GET /availability/team?users=&start=&end=
//   - POST /search: ranked candidate slots (searchRequest in search_handler.go).
//   - POST /meetings, GET /meetings/{id}, POST /meetings/{id}/confirm,
//     POST /meetings/{id}/cancel, POST /meetings/{id}/reschedule,
//     GET /meetings/{id}/suggestions, GET /meetings/{id}/reminders
//   - POST /series: a recurring meeting and its occurrences.
//
// Instants travel as RFC 3339 strings and are returned in UTC.
package http
