// Package session establishes, recovers, and retires pairwise forward
// secrecy sessions.
//
// The Establisher runs handshakes against the crypto engine, the
// Coordinator fronts it with persistence, and SecureSession is the live
// object callers encrypt and decrypt through.
package session
