// Package task manages background job queuing, processing, and lifecycle.
// It provides mechanisms for asynchronous execution of long-running
// operations like generating storyboards from source videos, ensuring they
// don't block HTTP request handling and can recover from application
// restarts by resuming from recorded checkpoints.
package task
