package cave

type Opener interface {
	Open() error
}

type Closer interface {
	Close() error
}

type Door interface {
	Opener
	Closer
}

type Gate struct{}

func (Gate) Open() error  { return nil }
func (Gate) Close() error { return nil }

type Hatch struct{}

func (Hatch) Open() error { return nil }

type Marker interface{}
