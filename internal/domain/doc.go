// Package domain contains shared domain types used across entity sub-packages.
// Entity-specific types live in sub-packages (domain/user, domain/post).
// This root package holds sentinel errors, validation types, and the Filter
// and Patch types shared by every entity store.
package domain
