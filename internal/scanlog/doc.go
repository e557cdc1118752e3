// Package scanlog persists finished scan records to a SQLite database so
// past runs stay inspectable after the process exits.
package scanlog
