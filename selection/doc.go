// Package selection holds the single active map selection.
//
// Every Select issues a new Token; the previous token stops being current in the same
// critical section that publishes the new selection. Asynchronous work captures the token
// it was started for and checks IsCurrent before applying results.
package selection
