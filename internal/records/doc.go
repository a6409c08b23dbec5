// Package records persists the SCOTT demo schema (dept, emp, bonus,
// salgrade) plus a customers table in SQLite.
//
// Store methods do presence and range checks only. Missing rows surface as
// ErrNotFound, duplicate keys and foreign key violations as ErrConflict, and
// rejected input as ErrInvalid, all matchable with errors.Is.
package records
