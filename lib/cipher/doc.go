// Package cipher holds the per-session AES-256-CBC state used by the service.
//
// A State is one CBC context: an expanded AES-256 key plus the current chaining
// vector. Encryption and decryption share that vector, so a session behaves as
// a single CBC stream that is fed one 16-byte block at a time.
package cipher
