// Package types defines the shared data model of the dialogue engine:
// the per-turn Message, knowledge-base answers, the reply packet returned
// to the hosting layer, and the structured error taxonomy.
package types
