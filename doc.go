// Package shlink implements the producer and consumer sides of a SMART
// Health Link: token encode/decode, the AES-256-GCM content envelope,
// the SHL builder, the manifest/content/attachment access-control
// engine, and revocation, over a pluggable storage.ServerStorage
// backend (see the storage subpackage).
//
// Bundle assembly, QR-code rendering, web-framework adapters and CLI
// tooling are out of scope; this package accepts and returns opaque
// JSON documents and a framework-agnostic Request/Response pair.
package shlink
