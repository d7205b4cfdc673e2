package dispatch

import "testing"

func TestApplyMappingIdentityByDefault(t *testing.T) {
	v := []int{10, 20, 30}
	out := applyMapping(v, nil)
	for i := range v {
		if out[i] != v[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], v[i])
		}
	}
}

func TestApplyMappingPermutes(t *testing.T) {
	v := []int{10, 20, 30}
	mapping := []int{2, 0, 1}
	out := applyMapping(v, mapping)
	want := []int{30, 10, 20}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

// TestSliceLawConcatenation checks spec.md §8's dispatcher property:
// concatenating the K-length slices in host order (ignoring pads on the
// last slice) equals mapped[0:N].
func TestSliceLawConcatenation(t *testing.T) {
	mapped := []int{1, 2, 3, 4, 5, 6, 7}
	k := 3
	hosts := 3 // H*K = 9 >= N=7, last slice padded

	var reconstructed []int
	for h := 0; h < hosts; h++ {
		lo := h * k
		if lo >= len(mapped) {
			lo = len(mapped)
		}
		hi := lo + k
		if hi > len(mapped) {
			hi = len(mapped)
		}
		slice := append([]int(nil), mapped[lo:hi]...)
		reconstructed = append(reconstructed, slice...)
	}
	if len(reconstructed) != len(mapped) {
		t.Fatalf("reconstructed len = %d, want %d", len(reconstructed), len(mapped))
	}
	for i := range mapped {
		if reconstructed[i] != mapped[i] {
			t.Errorf("reconstructed[%d] = %d, want %d", i, reconstructed[i], mapped[i])
		}
	}
}

func TestResolveMotor(t *testing.T) {
	ep, err := ResolveMotor(1, 8)
	if err != nil || ep.HostIndex != 0 || ep.LocalID != 1 {
		t.Errorf("ResolveMotor(1,8) = %+v, %v", ep, err)
	}
	ep, err = ResolveMotor(9, 8)
	if err != nil || ep.HostIndex != 1 || ep.LocalID != 1 {
		t.Errorf("ResolveMotor(9,8) = %+v, %v", ep, err)
	}
	ep, err = ResolveMotor(16, 8)
	if err != nil || ep.HostIndex != 1 || ep.LocalID != 8 {
		t.Errorf("ResolveMotor(16,8) = %+v, %v", ep, err)
	}
	if _, err := ResolveMotor(0, 8); err == nil {
		t.Error("expected error for motor_id=0")
	}
}
