// Package events decouples job intake from background processing. The job
// service emits a TaskRequestEvent when a storyboard job is accepted, and
// the task runner side subscribes through EventHandler to build and queue
// the matching task. Neither side imports the other, which keeps the HTTP
// layer free of runner dependencies.
package events
