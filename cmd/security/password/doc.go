// Package password implements Argon2id password hashing with a PHC-encoded
// storage format, plus the password policy applied at hash time.
//
// Verify is constant-time on the derived key and refuses hashes whose cost
// parameters exceed the configured maxima, so attacker-controlled hash
// strings cannot drive pathological resource usage.
package password
