// Package storage provides the persistence layer used by the bot.
//
// It currently holds:
//   - Per-user permission levels (global or scoped to one chat)
//   - An audit log of operator actions
package storage
