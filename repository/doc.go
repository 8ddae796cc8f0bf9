// Package repository provides a generic repository built on Bun. A
// Repository[T] is bound to one model and runs every operation against a
// caller-owned Session: get, create, update, delete, listing, equality
// filtering, counting, get-or-create and pagination.
package repository
