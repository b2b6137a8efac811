// Package bar holds the fixture component exercised by the cave layer.
package bar

import "fmt"

// Barer is implemented by components that can bar.
type Barer interface {
	DoBar()
}

// Utility is the Barer registered by the cave layer.
type Utility struct{}

var _ Barer = Utility{}

// DoBar prints "Bar!" to stdout.
func (Utility) DoBar() {
	fmt.Println("Bar!")
}
