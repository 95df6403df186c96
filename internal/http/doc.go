// Package http provides HTTP handlers and middleware for the room
// reservation API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}.
//     The token is returned in the response body and additionally surfaced
//     via the `X-Session-Token` header and a `session_token` cookie.
//   - POST /sessions/refresh: rotates the current session token.
//   - DELETE /sessions/current: revokes the current session token extracted
//     from the Authorization header or session cookie. Returns 204 No
//     Content and clears the cookie.
//   - DELETE /sessions/{token}: administrator controlled revocation of an
//     arbitrary session token.
//   - GET /users, POST /users, PUT /users/{id}, DELETE /users/{id}:
//     administrator controlled user management endpoints exchanging the
//     `userDTO` payload defined in user_handler.go.
//   - GET /rooms, POST /rooms, GET /rooms/{id}, PUT /rooms/{id},
//     DELETE /rooms/{id}: room catalog endpoints exchanging the `roomDTO`
//     payload defined in room_handler.go. Reads are available to any
//     authenticated principal while mutations require admin privileges.
//   - GET /availability: probes whether one room/date/time slot is free.
//   - GET /bookings, POST /bookings, GET /bookings/{id}: reservation series
//     endpoints exchanging the `bookingDTO` payload defined in
//     booking_handler.go. Creation expands the recurrence rule and reports
//     per-occurrence successes and failures.
//   - POST /bookings/{id}/decision: applies a status decision (approve,
//     reject, cancel, delete) to one occurrence or, with scope "group", to
//     the whole reservation series.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
