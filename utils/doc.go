// Package utils provides small shared helpers for the transitmap engine.
//
// It contains:
//   - Great-circle distance calculation
//   - Coordinate and distance formatting for display
//   - Time formatting for API payloads
package utils
