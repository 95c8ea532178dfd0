package llm

import "context"

// Request is a rendered completion-service call. System carries the fixed
// output contract, User the case-specific content. ImageB64/ImageMIME are
// set only for image (OCR) requests.
type Request struct {
	System    string
	User      string
	ImageB64  string
	ImageMIME string
}

// HasImage reports whether the request should go out as a vision call.
func (r Request) HasImage() bool {
	return r.ImageB64 != ""
}

// Completer is the boundary to the external completion service. One
// outbound call per invocation, no caching, no retries; the caller owns
// retry policy and timeouts via ctx.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
