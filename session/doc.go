// Package session implements server-side session state for web request
// handlers: opaque records that are created, loaded, mutated, expired, and
// securely rotated, persisted through interchangeable storage backends.
//
// The package is deliberately small at its edges. It never reads cookies or
// headers, never parses connection strings, and never opens network
// connections: the request-handling collaborator supplies the client-carried
// id plus IP/User-Agent metadata, and each backend receives an already-open
// handle. What lives here is the lifecycle engine and the consistency
// contract every backend satisfies with very different primitives
// (temp-file rename, SQL upsert, set-with-TTL, document upsert).
//
// # Components
//
//   - Session: the mutable key/value record with dirty tracking
//   - Store: the polymorphic save/load/delete/sweep contract
//   - Manager: the lifecycle controller handlers talk to
//   - Encode/Decode: the backend-agnostic serialization codec
//   - Register/Open: the storage backend registry
//
// # Basic usage
//
//	import (
//		"github.com/dmitrymomot/sessionstore/session"
//		"github.com/dmitrymomot/sessionstore/dirstore"
//	)
//
//	store, err := dirstore.New("/var/lib/app/sessions")
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManager(store,
//		session.WithDuration(900),          // seconds, or a time.Duration
//		session.WithRotationInterval(240),
//	)
//
//	// per request:
//	sess, err := manager.Resolve(ctx, clientID, session.Metadata{IP: ip, UserAgent: ua})
//	sess.Set("theme", "dark")
//	sess, err = manager.Finish(ctx, sess, clientWriter)
//
// Resolve always yields a usable session: a stale, unknown, or unreadable
// id degrades to a fresh record rather than an error. Finish refreshes the
// expiry, rotates the identifier when the rotation schedule has passed, and
// persists any in-request mutations in one step.
//
// # Backend selection
//
// Backends register themselves on import, in the manner of database/sql
// drivers. Selection by configuration:
//
//	import (
//		_ "github.com/dmitrymomot/sessionstore/redisstore"
//	)
//
//	cfg, _ := session.LoadConfig() // SESSION_STORAGE=redis://...
//	manager, err := session.NewFromConfig(cfg, redisClient)
//
// Kinds whose packages were never imported are absent from the registry and
// yield ErrUnsupportedStorage.
//
// # Expired session cleanup
//
// Expired records are superseded on read but left in storage; removal is a
// batch concern. Call Manager.SweepExpired from a periodic job. The Redis
// backend relies on native key expiry instead and reports
// ErrSweepUnsupported.
package session
