// Package password hashes the fake backend's fixture passwords with Argon2id
// so that login verification behaves like a real server's.
package password
