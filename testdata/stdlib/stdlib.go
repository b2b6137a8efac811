package stdlib

import "fmt"

type Echo struct {
	Text string
}

func (e Echo) String() string {
	return e.Text
}

type Fault struct{}

func (Fault) Error() string { return "fault" }

var _ fmt.Stringer = Echo{}
