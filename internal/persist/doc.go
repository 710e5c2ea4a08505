// Package persist loads and saves typed collections as pretty-printed JSON files.
//
// Reads never fail the caller: a missing, unreadable, empty or unparseable file yields the
// fallback value and the problem is logged. Writes go through a temp file that is fsynced and
// renamed over the target, retried according to a retry.Policy.
package persist
