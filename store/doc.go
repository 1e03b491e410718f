// Package store persists generated models so that the service can list and
// serve them after generation.
//
// Two implementations of [ModelStore] are provided: [GormStore] on top of
// GORM (postgres, mysql or sqlite) and [MemoryStore] for deployments without
// a database. Both upsert by model name.
package store
