// Package manta provides the shared vocabulary of a client for a remote
// object storage and batch compute service spoken over HTTP.
//
// The package itself performs no I/O. It defines:
//
//   - Path: logical paths resolved into the /<user>/stor and
//     /<user>/jobs/<uuid>/stor namespaces, with predicates over the parsed value
//   - SignFunc, Signature and SignRequest: the request authentication protocol
//   - Entry, ObjectInfo, Job and the JobDefinition sum type
//   - the error taxonomy shared by every operation
//
// # Request Authentication
//
// Every request carries exactly one Date header. SignRequest hands that exact
// value to the caller supplied SignFunc and renders the result into
//
//	Signature keyId="/<user>/keys/<keyId>",algorithm="<algorithm>" <signature>
//
// A signer failure aborts the operation before any bytes reach the network.
//
// # Errors
//
// Non-2xx responses decode into *RemoteError, whose Name is the service code
// with an "Error" suffix. Use errors.Is with ErrNotFound, ErrUnauthorized or
// ErrForbidden to test for common conditions:
//
//	if errors.Is(err, manta.ErrNotFound) {
//	    // ...
//	}
//
// See the client package for the operations, and the stream package for the
// integrity verifier and the line event decoder.
package manta
