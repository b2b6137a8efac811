package hidden

type digger interface {
	dig()
}

type Sleeper interface {
	Sleep()
}

type mole struct{}

func (mole) dig()   {}
func (mole) Sleep() {}

type Bat struct{}

func (Bat) Sleep() {}
