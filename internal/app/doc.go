// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the run lifecycle that wires the imaging
// pipeline to its collaborators, decoupled from any specific entrypoint
// like a CLI or server.
package app
