// Package models defines the core domain models for Spending Diary.
//
// # Models
//
//   - User: A registered account, identified by a unique phone number
//   - Expense: A recorded expense with an ordered list of participant shares
//   - Share: One participant's portion of an expense
//   - Balance: A directed, per-ordered-pair running balance between two users
//   - FriendBalance: A friend's public profile paired with the balance toward them
//
// # Design Principles
//
// 1. **Exact money**: Amounts are decimal.Decimal, never float64
// 2. **Creator position**: Shares[0] is always the expense creator
// 3. **Avoid circular references**: Use ID strings instead of pointers for relationships
// 4. **Anti-symmetry**: Balance(A,B) == -Balance(B,A) for every pair with history
package models
