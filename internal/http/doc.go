// Package http provides HTTP handlers and middleware for the reservation API.
//
// Every endpoint except PIN setup requires HTTP Basic credentials: the user
// ID as user name and the PIN as password.
//
// The router exposes the following endpoints:
//   - POST /reservations: books one inclusive range. Body: {"resource_id",
//     "user_id","start_date","end_date","purpose","force"}. Responds 201 with
//     the reservation, or 409 listing the colliding reservations.
//   - POST /reservations/batch: books a free-form selection of days. Body:
//     {"resource_id","user_id","dates":[...],"purpose","force"}. Responds 201
//     with every reservation created.
//   - POST /reservations/{id}/renew: extends the caller's reservation through
//     tomorrow and records the renewal.
//   - DELETE /reservations/{id}: cancels a reservation. Responds 204.
//   - GET /reservations/mine: lists the caller's active reservations.
//   - GET /resources/{id}/availability?start=YYYY-MM-DD&days=N: one status per
//     day; start defaults to today and days to 30.
//   - GET /resources/{id}/reservations?from=YYYY-MM-DD: admin listing of a
//     workstation's active reservations.
//   - POST /users: admin registration of an account. Body: {"id","name",
//     "email","role","pin"}.
//   - POST /users/{id}/pin: sets the first PIN of an account created without
//     one. Body: {"pin"}. No credentials required.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
