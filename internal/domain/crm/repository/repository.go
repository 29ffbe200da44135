// Package repository provides the row stores behind the CRM core: an
// append-only collection of donation entries with stable sequential ids,
// backed either by Postgres or by process memory. Both implementations
// satisfy crm.EntryStore.
package repository
