// Package calendar holds the model of the economic calendar retrieval engine.
//
// A retrieval covers a DateRange that the chunk planner cuts into Chunks. Each
// chunk yields RawEvents from the parser; events are deduplicated by their
// IdentityKey before being returned.
//
// # Identity
//
// Upstream row ids are not reliable: the same release can appear under two ids
// and pagination repeats rows. KeyOf therefore keys events on
// (timestamp, normalized title, country) and only falls back to the row id when
// that tuple is incomplete.
//
// # Validation
//
// ErrInvalidRange and ErrInvalidConfig are the only fatal errors of a
// retrieval; callers match them with errors.Is.
package calendar
