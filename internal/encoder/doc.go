// Package encoder probes for a usable video encoder once per process and
// exposes the winner's output parameters. Hardware candidates are tried in
// a fixed order with a bounded capability probe each; libx264 is the
// guaranteed software fallback.
package encoder
