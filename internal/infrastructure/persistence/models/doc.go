// Package models holds the GORM row types behind the invoicing repositories.
// Domain types carry no ORM tags; each model converts with ToDomain and
// FromDomain. The SQL migrations own the schema, the tags here only have to
// agree with it (and drive AutoMigrate in SQLite tests).
package models
