// Package store provides the durable pieces behind the persistent caches.
//
// A Store is a byte-oriented key-value collaborator with synchronous
// durability on Put; Bolt backs it with an embedded bbolt file and Memory
// keeps it in process. Codecs turn typed results into bytes, and snapshot
// files hold a whole in-memory cache plus its version tag.
package store
