package sink

// OutputDevice describes a video node frames can be written to.
type OutputDevice struct {
	Path     string
	Name     string
	Driver   string
	BusInfo  string
	Loopback bool
}
