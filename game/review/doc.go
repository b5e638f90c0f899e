// The review package implements imported game records and position analysis:
//
// - Parsing SGF text into metadata, setup stones, and the ordered mainline
// - A thread-safe store of review sessions keyed by review ID
// - Pure position replay at any move index
// - Lazily attached analysis engines, shared across calls per review
// - An analysis cache with single-flight collapse of duplicate requests
//
// Reviews are not capacity limited. Their engine adapter is created on
// the first analyze call and reused until the review is closed or
// reclaimed by the sweeper.
package review
