// Package client talks to a remote object storage and batch compute service.
//
// Every request carries a Date header and an Authorization header signed
// over that exact date by the caller supplied manta.SignFunc. Relative paths
// resolve into the namespace of the configured user, /<user>/stor.
//
// # Basic Usage
//
//	signer, err := keybackend.NewSigner(keybackend.KeysConfig{
//		User: "mark",
//		File: "~/.ssh/id_ed25519",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	c, err := client.New("https://manta.example.com", signer.SignFunc(),
//		client.WithUser("mark"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	obj, err := c.Get(ctx, "reports/2024.csv", client.RequestOptions{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer obj.Close()
//
// # Streaming Integrity
//
// Object bodies are handed out while they download. The MD5 digest of the
// bytes is compared with the content-md5 the service declared only once the
// body has been read to the end, so anything read before the final Read is
// provisional: a *manta.ChecksumMismatchError in place of io.EOF means the
// whole body must be discarded.
//
// # Listings
//
// Directory listings, job listings and job output are line delimited
// streams. They are consumed with Next or ranged over with All, and end with
// io.EOF or a single terminal error. A stream whose trailer reports a
// failure ends with *manta.StreamFailedError even after it produced entries.
//
// # Composite Operations
//
// Mkdirp creates parents one at a time and stops at the first failure.
// RemoveAll walks a tree concurrently, deleting objects as it finds them and
// directories deepest first once the walk has drained. Neither undoes work
// already done when it fails.
package client
