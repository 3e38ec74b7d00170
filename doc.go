// Package scribdlink resolves Scribd share URLs to direct download links.
//
// # Quick Start
//
// Create a resolver, resolve a URL, and close when done:
//
//	r, err := scribdlink.NewResolver(
//	    scribdlink.WithAPIKey(os.Getenv("BROWSERLESS_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	result, err := r.Resolve(ctx, "https://www.scribd.com/document/456/My-Great-Report")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.DownloadLink)
//
// # Resolution Pipeline
//
// A resolution runs these stages:
//
//  1. Identity extraction: document id and title slug from the share URL
//  2. Target generation: a deterministic link on the redirection service
//  3. Interception: a remote browser opens the target and watches outgoing
//     requests until one carries a "fileurl" query parameter
//  4. Validation: the captured value must be an absolute http(s) URL
//
// Resolver.Plan runs the first two stages only and never contacts the
// browser provider.
//
// # Backends
//
// Interception runs on one of three backends:
//
//   - BackendFunction (default) posts a script to the provider's /function
//     endpoint; one HTTP round trip per resolution
//   - BackendCDP drives a browser on the provider over its WebSocket
//     endpoint with go-rod
//   - BackendLocal launches a local Chrome with go-rod and needs no API key
//
// # Errors
//
// Every Resolve failure is an *Error. Its Kind classifies the failure, its
// Message is safe to show to clients, and HTTPStatus maps it to the status
// an HTTP front end should return:
//
//	var rerr *scribdlink.Error
//	if errors.As(err, &rerr) {
//	    http.Error(w, rerr.Message, rerr.HTTPStatus())
//	}
//
// # Parallel Processing
//
// For batches or servers, use ResolverPool to bound concurrent browser
// sessions:
//
//	pool := scribdlink.NewResolverPool(scribdlink.ResolvePoolSize(0), opts...)
//	defer pool.Close()
//
//	result, err := pool.Resolve(ctx, url)
//
// # Browser Requirements
//
// Only BackendLocal needs Chrome/Chromium on the host. go-rod downloads a
// managed Chromium on first run (~/.cache/rod/browser/) unless
// ROD_BROWSER_BIN points at one. In containers and CI, set ROD_NO_SANDBOX=1.
package scribdlink
