package bar

import "fmt"

type Barer interface {
	DoBar()
}

type Utility struct{}

func (Utility) DoBar() {
	fmt.Println("Bar!")
}

// Liar has a DoBar with the wrong signature.
type Liar struct{}

func (Liar) DoBar(n int) error {
	return nil
}
