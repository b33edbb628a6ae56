// Package subscription tracks the synchronization state of each subscribed
// book channel.
//
// Every channel moves through a fixed state machine:
//
//	Subscribing -> AwaitingSnapshot -> Syncing -> Synced
//	                     ^                |          |
//	                     +----(stale)-----+          |
//	                     +-----------(gap)-----------+
//	Syncing -> Failed (retries exhausted)
//
// Each entry carries a generation number assigned when it is created.
// Asynchronous work (snapshot responses, scheduled retries) remembers the
// generation it was started for and looks the entry up with it, so work
// started for an unsubscribed or replaced channel finds nothing.
package subscription
