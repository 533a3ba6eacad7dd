// Package models contains the GORM persistence models for the billing ledger.
// Domain entities carry no ORM tags; each model here maps one table and
// converts to and from its entity with ToDomain / FromDomain.
//
// Payments are insert-only. Their allocations and reversals live in
// separate append-only tables and are attached to the Payment entity when
// it is loaded.
package models
