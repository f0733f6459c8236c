// Package stream holds the two response body pipelines used by the client.
//
// Verifier forwards an object body to the caller while folding every byte
// into an MD5 digest, and reports a *manta.ChecksumMismatchError in place of
// io.EOF when the server declared a different content-md5. Data read from a
// Verifier is provisional until it returns io.EOF.
//
// Decoder splits a line delimited body into typed events. It stops at the
// first malformed line and consults the X-Stream-Error trailer at the end
// of the body to tell a clean end from a server side failure.
//
//	dec := stream.NewDecoder(resp.Body, stream.JSONLines[manta.Entry], stream.DecoderConfig{
//	    Path:    "/mark/stor/logs",
//	    Trailer: func() http.Header { return resp.Trailer },
//	})
//	for entry, err := range dec.All() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(entry.Name)
//	}
package stream
