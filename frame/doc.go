// Package frame provides the display-frame primitive the scroll scheduler
// runs on.
//
// A Source accepts callbacks for the next frame. Queue advances only when
// its owner calls Step, which suits tests and hosts with their own render
// loop (a bubbletea tick, for instance). Loop advances on a ticker.
package frame
