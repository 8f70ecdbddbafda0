// Package state tracks which chats are mid-conversation, awaiting a
// follow-up message. State is in-memory only: a restart drops in-flight
// conversations, and users simply start over with a new command.
package state
