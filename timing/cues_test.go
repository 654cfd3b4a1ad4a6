package timing

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nightreel/types"
)

const sampleVTT = `WEBVTT

NOTE generated by the tts step

00:00:00.100 --> 00:00:00.450
The

00:00:00.450 --> 00:00:01.200 align:middle
<b>house</b>

00:00:01.200 --> 00:00:01.200

00:01:01.250 --> 00:01:02.000
was quiet.
`

const sampleSRT = `1
00:00:00,100 --> 00:00:00,450
The

2
00:00:00,450 --> 00:00:01,200
house
`

func TestParseCuesVTT(t *testing.T) {
	cues, err := ParseCues(strings.NewReader(sampleVTT))
	if err != nil {
		t.Fatalf("ParseCues: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("got %d cues; want 3 (empty cue skipped): %+v", len(cues), cues)
	}
	if cues[1].Text != "house" {
		t.Errorf("tags not stripped: %q", cues[1].Text)
	}
	if !approx(cues[2].Start, 61.25) || !approx(cues[2].End, 62.0) {
		t.Errorf("cue 2 = [%.3f, %.3f]; want [61.25, 62]", cues[2].Start, cues[2].End)
	}
}

func TestParseCuesSRT(t *testing.T) {
	cues, err := ParseCues(strings.NewReader(sampleSRT))
	if err != nil {
		t.Fatalf("ParseCues: %v", err)
	}
	if len(cues) != 2 || cues[0].Text != "The" || !approx(cues[1].End, 1.2) {
		t.Fatalf("unexpected cues: %+v", cues)
	}
}

func TestParseCuesRejectsOutOfOrder(t *testing.T) {
	track := "WEBVTT\n\n00:00:02.000 --> 00:00:03.000\nb\n\n00:00:01.000 --> 00:00:02.000\na\n"
	if _, err := ParseCues(strings.NewReader(track)); !errors.Is(err, ErrCueOrder) {
		t.Fatalf("err = %v; want ErrCueOrder", err)
	}
}

func TestParseCuesRejectsNonNumericSeconds(t *testing.T) {
	track := "WEBVTT\n\n00:00:NaN --> 00:00:01.000\nhello\n"
	cues, err := ParseCues(strings.NewReader(track))
	if err == nil {
		t.Fatalf("ParseCues accepted %+v", cues)
	}
}

func TestCheckOrderRejectsNonFinite(t *testing.T) {
	cases := map[string][]types.Cue{
		"nan start": {{Start: math.NaN(), End: 1, Text: "a"}},
		"inf end":   {{Start: 0, End: math.Inf(1), Text: "a"}},
	}
	for name, cues := range cases {
		t.Run(name, func(t *testing.T) {
			if err := CheckOrder(cues); !errors.Is(err, ErrCueOrder) {
				t.Fatalf("err = %v; want ErrCueOrder", err)
			}
		})
	}
}

func TestParseCueFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narration.vtt")
	if err := os.WriteFile(path, []byte(sampleVTT), 0o644); err != nil {
		t.Fatal(err)
	}
	cues, err := ParseCueFile(path)
	if err != nil {
		t.Fatalf("ParseCueFile: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("got %d cues; want 3", len(cues))
	}

	if _, err := ParseCueFile(filepath.Join(t.TempDir(), "missing.vtt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"00:00:01.500", 1.5, true},
		{"00:00:01,500", 1.5, true},
		{"01:02:03.004", 3723.004, true},
		{"02:03.250", 123.25, true},
		{"00:61:00.000", 0, false},
		{"1.5", 0, false},
		{"aa:bb:cc", 0, false},
		{"00:00:NaN", 0, false},
		{"00:00:nan", 0, false},
		{"00:00:Inf", 0, false},
		{"00:00:+Inf", 0, false},
		{"00:00:0x1p-2", 0, false},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.in)
		if c.ok && (err != nil || !approx(got, c.want)) {
			t.Errorf("ParseTimestamp(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Errorf("ParseTimestamp(%q) expected error", c.in)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:        "00:00:00.000",
		1.5:      "00:00:01.500",
		3723.004: "01:02:03.004",
		-2:       "00:00:00.000",
	}
	for in, want := range cases {
		if got := FormatTimestamp(in); got != want {
			t.Errorf("FormatTimestamp(%v) = %q; want %q", in, got, want)
		}
	}
}
