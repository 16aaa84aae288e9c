// Package retry wraps fallible operations with classification-driven retry
// and capped exponential backoff. Errors are classified as transient via
// caller-supplied matchers or a built-in set of transient signatures;
// everything else fails after a single attempt. Backoff delays are computed
// by a pure function of the attempt number so they can be unit tested
// without real time passing, and the wait between attempts is cancellable
// through the operation's context.
package retry
