// Package http exposes the booking and reminder services over a chi router.
//
// Callers are identified by headers set by an upstream gateway: X-User-ID,
// X-User-Email, X-User-Name and X-Admin ("true" for administrators).
//
// Endpoints:
//   - GET /healthz: store reachability.
//   - GET /test, POST /trigger: runs one reminder pass inline and queues a
//     calendar reconcile. Responds 202 with the reminder pass summary.
//   - GET /slots?type=&date=&duration=&custom_value=&custom_unit=&tz=&mine=:
//     bookable slots of one activity type on one date.
//   - GET /bookings, POST /bookings, POST /bookings/{id}/cancel,
//     DELETE /bookings/{id}, GET /bookings/calendar.ics.
//   - GET /reminders, POST /reminders, PUT /reminders/{id},
//     DELETE /reminders/{id}, POST /reminders/{id}/toggle {"isEnabled": bool}.
//   - GET /notifications, POST /notifications/{id}/read,
//     DELETE /notifications/{id}; POST and DELETE /push-tokens.
//   - /activity-types (GET, POST, PUT/DELETE by id) and /schedule-groups
//     (GET, POST, PUT and DELETE with {"ids": [...]}); listing is open,
//     changes require an administrator.
//   - Administrator only: /calendar-accounts (GET, POST, DELETE ?email=).
//
// Errors are JSON bodies {"error_code","message","errors"} with Thai
// messages; validation failures carry per-field messages.
package http
