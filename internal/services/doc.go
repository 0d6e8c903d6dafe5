// Package services defines the shared error taxonomy for the render
// pipeline. Errors are tagged with sentinel markers so callers can
// classify failures (invalid request, probe failure, external tool
// failure, misconfiguration) without string matching.
package services
