// Package entrypoint maps entry-point paths named in scenario documents to
// the host applications that can be driven under a scenario. Each Resolve
// yields a fresh Instance with its own interception table, so concurrent
// runs of the same application never observe each other's interceptors.
package entrypoint
