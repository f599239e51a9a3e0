// Package models defines the core domain models for KIXIKILA.
//
// # Savings groups
//
// A Group is a rotating savings group: every member contributes the same
// ContributionAmount once per cycle, and the pool collected in a cycle is
// paid out to a single member.
//
//   - Group: configuration, lifecycle status and the state of the current cycle
//   - Member: one user's membership in a group, including the per-cycle Paid flag
//   - Cycle: immutable record of a completed draw
//
// # Users
//
// User is a registered account. Groups and members reference users by ID
// strings rather than pointers so models can be copied freely between the
// service and storage layers.
//
// # Money
//
// All amounts are github.com/shopspring/decimal values. Floating point is
// never used for contribution or pool arithmetic.
package models
