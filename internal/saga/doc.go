// Package saga implements the collections service's side of a saga: adding
// a tag to an item is written to an in-memory item store and appended to a
// transactional outbox in the same critical section, then relayed onto the
// bus by a background ticker. A separate listener watches for compensation
// events coming back from the filter service and rolls the tag back if the
// downstream step failed.
//
// The flow is deliberately not atomic across the item store and the bus:
// the outbox only guarantees the update is never lost once AddTag returns,
// not that it has already been published. That's what makes it a saga
// instead of a transaction: failure after the fact is compensated, not
// prevented.
package saga
