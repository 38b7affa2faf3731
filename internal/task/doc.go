// Package task manages background job queuing, processing, and lifecycle.
// The client engine uses it to replay remote balance updates that failed,
// retrying them in the background and recovering them from the local cache
// after a restart.
package task
