// Package pipeline turns a submission's content into paginated messages.
//
// Three stages run in strict order for each submission:
//
//	extract   -> text or message list into extracted records
//	normalise -> extracted records into canonical messages
//	paginate  -> canonical messages into bounded pages
//
// Each stage runs as a job on a shared Executor, so one submission's slow
// stage never holds up another submission's stages. Stages are retried
// on transient failure. Validation failures abort the chain.
package pipeline
