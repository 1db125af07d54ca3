// Package auth provides API accounts and bearer tokens.
//
// Passwords are hashed with Argon2id. Access tokens are HS256 JWTs whose
// subject is the username and whose role claim is either user or admin;
// only admins may delete devices. Accounts live in SQLite or, for
// multi-replica deployments, in the shared Postgres database.
package auth
