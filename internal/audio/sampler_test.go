package audio

import "testing"

func TestSamplerNode_Cyclicity(t *testing.T) {
	s := NewSamplerNode(Mono([]float32{1.0, -1.0}))
	want := []StereoFrame{{1, 1}, {-1, -1}, {1, 1}, {-1, -1}, {1, 1}, {-1, -1}}
	for i, w := range want {
		got := s.Tick()
		if got != w {
			t.Fatalf("frame %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestSamplerNode_EmptySampleNeverPanics(t *testing.T) {
	s := NewSamplerNode(Mono(nil))
	for i := 0; i < 4; i++ {
		got := s.Tick()
		if got != (StereoFrame{0, 0}) {
			t.Fatalf("frame %d = %+v, want silent frame", i, got)
		}
	}
}

func TestStereoify_DuplicatesNotPans(t *testing.T) {
	frames := Mono([]float32{0.25, -0.75}).Stereoify()
	want := []StereoFrame{{0.25, 0.25}, {-0.75, -0.75}}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Fatalf("frame %d = %+v, want %+v", i, frames[i], want[i])
		}
	}
}

func TestStereoify_ZipsDistinctChannels(t *testing.T) {
	frames := Stereo([]float32{1, 2, 3}, []float32{-1, -2, -3}).Stereoify()
	want := []StereoFrame{{1, -1}, {2, -2}, {3, -3}}
	for i := range want {
		if frames[i] != want[i] {
			t.Fatalf("frame %d = %+v, want %+v", i, frames[i], want[i])
		}
	}
}
