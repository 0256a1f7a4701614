// Package dialog is the graph compiler and resumable execution engine.
//
// A GraphConfig is compiled into a linked Graph of nodes. Each node produces
// a resumable iterator over a session: advancing the iterator either yields
// a reply string (the suspension point, awaiting the next user utterance) or
// ends, optionally handing control to a successor node. The StateTracker's
// turn loop drives the active iterator until a reply is produced, falling
// back to the knowledge base and chit-chat when no flow consumes the
// utterance. The Agent owns the graphs and the session cache.
//
// Iterators are deliberately explicit state machines: one integer cursor
// plus a handful of counters per node, so a pending multi-turn computation
// can be serialized between turns (see Snapshot).
package dialog
