// Package driven defines the interfaces the chatlogs core calls out to:
// storage, parsing, fetching, configuration and metrics. Adapters under
// internal/adapters/driven implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - LogStore: Log record and page persistence with create-if-absent
//   - Parser: Extracts messages from one type of text log
//   - ParserRegistry: The closed dispatch table of parsers
//   - ConfigStore: Application configuration
//   - SchedulerStore: Task state and run history for the expiry sweep
//
// # Optional Interfaces
//
// These can be nil:
//
//   - Fetcher: Remote content retrieval. Without it, archive submissions fail.
//   - PipelineObserver: Stage metrics. Without it, nothing is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, parser, or pipeline package
package driven
