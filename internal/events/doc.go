// Package events provides the in-process event bus used for telemetry.
//
// Services publish events (sync failures, reconciliation gaps, completed
// readings, granted entitlements) without knowing which handlers consume them.
// The primary components are:
// - Event: a typed message with a JSON payload
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
package events
