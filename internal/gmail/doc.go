// Package gmail retrieves labeled messages through the Gmail API.
//
// The Client lists message IDs matching a label query (paginated, in
// provider-returned order) and fetches each message in full. MIME parts are
// walked recursively: text/plain and text/html bodies are base64-decoded and
// concatenated, and parts carrying a filename and attachment ID are downloaded
// into the configured image directory. Content-ID headers are recorded so the
// normalizer can rewrite cid: references to local files.
//
// Authentication comes from the google package's credential store:
//
//	ts, err := store.TokenSource(ctx)
//	if err != nil {
//	    return err
//	}
//	client, err := gmail.NewClient(ctx, ts, cfg.ImageDir, logger)
//	if err != nil {
//	    return err
//	}
//	entries, err := client.FetchLabeled(ctx, "morning-dossier", 0)
package gmail
