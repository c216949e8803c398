// Package secret stores and retrieves credentials.
//
// It supports:
//   - The operating system keyring (see SystemKeyring) and an in-memory
//     keyring for tests (see MemoryKeyring)
//   - Fetching a password, prompting for it twice and storing it when the
//     keyring has none (see Password)
//   - Resolving "secretref:keyring:<service>/<user>" references in
//     configuration values (see Resolver)
//
// Secret values never appear in fmt output or logs; Secret redacts itself.
package secret
