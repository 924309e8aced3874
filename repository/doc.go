// Package repository provides a generic single-table CRUD repository over
// the database pool, driven by mapping metadata.
package repository
