// Package election provides a bully style leader election over a best-effort
// broadcast channel. Every replica broadcasts periodic heartbeats, tracks the
// peers it has heard from and, when no live leader is known, runs an election
// in which the highest identifier wins. A replica that hears no objection
// within the election timeout announces itself as coordinator.
//
// There is no quorum, no persisted log and no term fencing: the outcome is a
// best-effort verdict meant to gate a single active consumer.
package election
