// Package debtcase is the typed view of debt cases, payments and repayment
// strategies served by the DebtEase API.
//
// Service wraps the api hooks with concrete endpoints. Feed merges enriched
// cases pushed over the realtime channel into a locally held list.
package debtcase
