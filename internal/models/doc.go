// Package models defines the core domain models for loanledger.
//
// # Models
//
//   - Loan: a disbursed principal repaid over a fixed number of terms
//   - ScheduledRepayment: one due obligation within a loan's repayment plan
//   - ReceivedRepayment: append-only ledger record of one allocation run
//
// # Amounts
//
// All amounts are integers in minor currency units. Currency codes are carried
// as opaque tags and never converted.
//
// # Relationships
//
// Scheduled and received repayments reference their loan by ID string rather
// than by pointer. A Loan may carry its ordered schedule in Installments when
// loaded together with it.
package models
