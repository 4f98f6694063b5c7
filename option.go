package lsp

// defaultMaxContentLength caps the declared body size of incoming messages (16MB).
// A peer announcing a larger body is treated as misbehaving rather than
// trusted with an arbitrarily large allocation.
const defaultMaxContentLength = 16 * 1024 * 1024

// options holds the configuration for a Connection.
type options struct {
	maxContentLength uint64
}

// Option is a function that configures connection options.
type Option func(*options)

// MaxContentLengthOption returns an Option that sets the largest body size,
// in bytes, that Receive will accept. Messages declaring a larger
// Content-Length are consumed and rejected with a ProtocolError.
func MaxContentLengthOption(limit uint64) Option {
	return func(o *options) {
		o.maxContentLength = limit
	}
}

// checkOptions sets default values for unset connection options.
func checkOptions(opts *options) {
	if opts.maxContentLength == 0 {
		opts.maxContentLength = defaultMaxContentLength
	}
}
