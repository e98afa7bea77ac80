// Package store is the worker's durable, single-process relational store:
// sessions and tasks, with a schema-version table and forward migrations
// applied in sequence on open. Built on database/sql against
// github.com/mattn/go-sqlite3, the only SQL driver the example corpus
// carries, with write-ahead logging enabled for concurrent readers.
package store
