// Package database provides connection management, table migrations, YAML
// fixture seeding, scoped transactions, SQL error classification, configuration
// types, logging and health checks built on top of Bun.
package database
