// Package profile reads and edits admin, creditor and debtor profiles.
package profile
