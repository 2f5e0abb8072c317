// Package registry holds the process-wide state of aicebreaker-server.
//
// A Registry owns three collections behind a single mutex:
//   - identities: every participant registered by the create-user collaborator,
//     in registration order. Records are never deleted.
//   - participants: live participant connections keyed by identity key
//     (wallet address). At most one connection per key.
//   - observers: live observer ("master") connections, unkeyed.
//
// The Connected flag of an identity is only flipped by AttachParticipant and
// DetachParticipant, so it is true exactly when a participant connection for
// that key is present in the pool.
//
// Snapshot, ConnectedParticipants and AllIdentities return copies; callers may
// keep or mutate them freely. Participants and Observers return the recipient
// list for a fan-out so that sends can happen outside the lock.
//
// Re-registering an existing key fails with ErrDuplicateIdentity and leaves the
// stored record untouched. Attaching a second connection for a key that is
// already connected fails with ErrAlreadyConnected.
package registry
