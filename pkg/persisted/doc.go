// Package persisted binds a reactive cell to one storage key.
//
// Construction hydrates the cell exactly once:
//
//	absent key          -> default value            (SourceDefault)
//	decodes, passes     -> decoded value            (SourceStorage)
//	fails to decode     -> default, key removed     (SourceCorrupt)
//	decodes, guard fails-> default, key removed     (SourceRejected)
//
// Any value that decodes and passes the guards is used as-is, including
// zero values such as 0, false, or "". Construction never writes to storage
// and never fails.
//
// After construction every Write encodes the value and stores it under the
// key. Storage failures (for example storage.ErrQuotaExceeded) are recorded
// and reported through Err and the activity emitter; the in-memory value stays
// authoritative for the rest of the session.
package persisted
