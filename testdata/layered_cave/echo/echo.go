package echo

import (
	"fmt"

	"example.com/layered_cave/bar"
)

// Echo implements bar.Barer only through a pointer.
type Echo struct {
	Times int
}

var _ bar.Barer = (*Echo)(nil)

func (e *Echo) DoBar() {
	for i := 0; i < e.Times; i++ {
		fmt.Println("Bar!")
	}
}

// Silent has no DoBar.
type Silent struct{}
