package conn

// Metrics receives connection-level measurements. Implementations must be
// safe for concurrent use.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	TransportError(op string)
	BytesSent(n int)
	BytesReceived(n int)
	EventReceived(resource string)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()     {}
func (nopMetrics) ConnectionClosed()     {}
func (nopMetrics) TransportError(string) {}
func (nopMetrics) BytesSent(int)         {}
func (nopMetrics) BytesReceived(int)     {}
func (nopMetrics) EventReceived(string)  {}
