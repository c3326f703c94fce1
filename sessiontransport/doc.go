// Package sessiontransport connects the session lifecycle engine to HTTP:
// it owns the client cookie the core deliberately knows nothing about.
//
// The cookie value is the session id signed with HMAC-SHA256, so a
// tampered or forged cookie falls back to a fresh session instead of
// becoming an error path. The transport extracts the client IP (honoring
// X-Forwarded-For and X-Real-IP) and User-Agent for the session metadata.
//
// Typical handler shape:
//
//	transport, _ := sessiontransport.NewCookie(manager, secret)
//
//	func handle(w http.ResponseWriter, r *http.Request) {
//		sess, err := transport.Load(r)
//		if err != nil {
//			http.Error(w, "session unavailable", http.StatusInternalServerError)
//			return
//		}
//		sess.Set("last_path", r.URL.Path)
//		if _, err := transport.Finish(w, r, sess); err != nil {
//			// the response can still proceed without durability
//		}
//		// write response body after Finish so the Set-Cookie header
//		// is not lost
//	}
//
// Logout:
//
//	_ = transport.Invalidate(w, r, sess)
package sessiontransport
