package upstream

import "github.com/hypebeast/go-osc/osc"

// OSCNotifier emits the outbound notifications of spec.md §6 (default port
// 10001) over a single long-lived OSC client.
type OSCNotifier struct {
	client *osc.Client
}

// NewOSCNotifier constructs a notifier addressing (host, port).
func NewOSCNotifier(host string, port int) *OSCNotifier {
	return &OSCNotifier{client: osc.NewClient(host, port)}
}

func (n *OSCNotifier) send(address string, args ...any) {
	msg := osc.NewMessage(address)
	msg.Append(args...)
	_ = n.client.Send(msg)
}

// Homed emits /Homed [motor_id, 1|-1].
func (n *OSCNotifier) Homed(motorID int, ok bool) {
	n.send("/Homed", int32(motorID), signOf(ok))
}

// HomedAll emits /Homed [1|-1] for the overall home_all result.
func (n *OSCNotifier) HomedAll(ok bool) {
	n.send("/Homed", signOf(ok))
}

// Initialized emits /Initialized [1].
func (n *OSCNotifier) Initialized() {
	n.send("/Initialized", int32(1))
}

// AverageSpeed emits /AverageSpeed [float].
func (n *OSCNotifier) AverageSpeed(v float64) {
	n.send("/AverageSpeed", float32(v))
}

// Speed emits /Speed [ints...].
func (n *OSCNotifier) Speed(vals []int) {
	n.send("/Speed", toInt32Args(vals)...)
}

// Position emits /Position [ints...].
func (n *OSCNotifier) Position(vals []int) {
	n.send("/Position", toInt32Args(vals)...)
}

func signOf(ok bool) int32 {
	if ok {
		return 1
	}
	return -1
}

func toInt32Args(vals []int) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = int32(v)
	}
	return out
}
