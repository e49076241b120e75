// Package http provides HTTP handlers and middleware for the fellowship API.
//
// The router exposes the following endpoints:
//   - POST /users: registers an account. Body: {"email","display_name","password"}.
//   - POST /login: verifies credentials and returns the account. No token is
//     issued; clients send the returned id in the `X-User-ID` header on
//     subsequent requests, which RequireUser resolves against the directory.
//   - POST /groups, POST /groups/recurring, PATCH /groups/{id},
//     DELETE /groups/{id}: group scheduling endpoints exchanging the
//     `groupDTO` payload defined in group_handler.go. The recurring variant
//     forces the recurring flag and rejects end dates that are not in the
//     future.
//   - GET /meetings/upcoming?limit=N: upcoming materialized meetings across
//     the caller's groups.
//   - GET /groups/{id}/calendar.ics: iCalendar feed of a group's materialized
//     instances, available to members.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
