// Package server orchestrates relayd startup and graceful shutdown.
//
// A Server runs the relay adapter next to its auxiliary HTTP servers (the
// control-plane API and the metrics endpoint). All components share one
// context: when any of them exits, the others are told to stop, and Serve
// returns once every component has released its resources or the shutdown
// timeout has elapsed.
package server
