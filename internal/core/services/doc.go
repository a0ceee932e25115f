// Package services holds the chatlogs core: the dedup and policy gates,
// submission orchestration, materialization, settings and scheduling.
//
// Services depend only on ports and domain types, never on adapters.
package services
