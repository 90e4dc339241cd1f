// Package management implements the user lifecycle of the management API:
// pre-created identities, registration, group invitations and password
// resets, all authorized by short lived signed action tokens.
//
// Action tokens:
//   - TokenCodec signs and verifies compact HS256 JWTs carrying an action
//     discriminator (REGISTRATION, GROUP_INVITATION, PASSWORD_RESET), the
//     subject identity (optional for brand new registrants) and its email.
//     Verification is stateless and every failure is reported as the same
//     ErrInvalidToken so callers cannot tell a tampered token from an
//     expired one.
//   - ActionResolver turns verified claims into a LifecycleAction and checks
//     the action preconditions (registration gate, pending invitations)
//     before anything is mutated.
//
// Lifecycle handlers:
//   - CompleteRegistrationHandler redeems a token and finalizes the identity.
//     The password check and the write are made atomic with an optimistic
//     version stamp on the users table.
//   - RequestPasswordResetHandler clears the stored hash of an internally
//     managed identity and mails a PASSWORD_RESET token.
//   - RegisterUserHandler and CreateUserHandler pre-create identities and
//     mail a REGISTRATION token. InviteHandler does the same for group
//     invitations.
//   - ConnectUserHandler, UpdateUserHandler and DeleteUserHandler cover
//     external logins, profile edits and archival.
//   - CheckActionTokenHandler validates a token without consuming it.
//   - UserService bundles every handler behind one facade.
//
// Side effects:
//   - ActivitySink, SearchIndexer and Notifier are best effort collaborators.
//     Their failures are logged and never undo a persisted mutation.
package management
