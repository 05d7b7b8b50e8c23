package value

// Sender is the transport internal/netio binds a Connection to: just
// enough surface for interpreted code to write output and hang up
// without this package importing net.
type Sender interface {
	Send(line string) error
	Close() error
}

// Connection is the heap representation of a bound network session
// (spec GLOSSARY "Connection"): a first-class value obtainable from a
// bound fiber via BoundConnection, passed to write_to()/disconnect().
type Connection struct {
	Header
	Transport    Sender
	Closed       bool
	BoundFiberID int
}

func NewConnection(t Sender, fiberID int) *Connection {
	return &Connection{Header: NewHeader(KindConnection), Transport: t, BoundFiberID: fiberID}
}

// Mark is a no-op: a Connection never references other heap values.
func (c *Connection) Mark(visit func(Any)) {}

func (c *Connection) Send(line string) error {
	if c.Closed {
		return nil
	}
	return c.Transport.Send(line)
}

func (c *Connection) Disconnect() error {
	if c.Closed {
		return nil
	}
	c.Closed = true
	return c.Transport.Close()
}
