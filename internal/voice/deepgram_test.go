package voice

import "testing"

func TestParseFinalTranscript(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{
			name:   "finalized transcript",
			raw:    `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"What time is it?","confidence":0.98}]}}`,
			want:   "What time is it?",
			wantOK: true,
		},
		{
			name: "interim result is skipped",
			raw:  `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"What ti"}]}}`,
		},
		{
			name: "empty transcript is skipped",
			raw:  `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"  "}]}}`,
		},
		{
			name: "metadata message is skipped",
			raw:  `{"type":"Metadata","request_id":"abc"}`,
		},
		{
			name: "malformed payload is skipped",
			raw:  `{"type":`,
		},
		{
			name: "missing alternatives is skipped",
			raw:  `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseFinalTranscript([]byte(tc.raw))
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if got != tc.want {
				t.Fatalf("transcript = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	p := NewDeepgramProvider(DeepgramConfig{APIKey: "test"})
	r := p.NewRecognizer("s1")
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	// Process before a successful Start drops audio without error.
	if err := r.Process([]byte{0x01, 0x02}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
}
