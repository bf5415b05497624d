// Package domain defines the core business types for the IGNITE feedback
// processing pipeline.
//
// Types in this package are pure value objects with no behavior beyond
// validation helpers, no database dependencies, and no HTTP concerns. They
// are the shared language between the envelope decoder, the context
// resolver, the subscriber state machine, and the persistence layer.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DynamoDB tags are allowed (they're metadata, not behavior)
//   - Pure helper functions on the types are allowed
//   - Constants and enums belong here
package domain
