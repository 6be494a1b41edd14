package protocol

import (
	"errors"
	"testing"
)

func TestSplitStatus(t *testing.T) {
	tests := []struct {
		payload   string
		wantName  string
		wantValue string
		wantText  string
		wantErr   bool
	}{
		{`VOL(-350)`, "VOL", "-350", "", false},
		{`SRC(0)"DVD player"`, "SRC", "0", "DVD player", false},
		{`AUDTYPE(7)"Dolby Atmos 7.1.4"`, "AUDTYPE", "7", "Dolby Atmos 7.1.4", false},
		{`SRCCOUNT(12)`, "SRCCOUNT", "12", "", false},
		{`POWER()`, "POWER", "", "", false},
		{`POWERONMAIN`, "", "", "", true},
		{`(1)`, "", "", "", true},
		{`VOL(-350`, "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			name, value, text, err := SplitStatus(tt.payload)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("err = %v, want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitStatus: %v", err)
			}
			if name != tt.wantName || value != tt.wantValue || text != tt.wantText {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)",
					name, value, text, tt.wantName, tt.wantValue, tt.wantText)
			}
		})
	}
}

func TestParsePower(t *testing.T) {
	state, err := ParsePower("POWER(1)", ZoneMain)
	if err != nil {
		t.Fatalf("ParsePower: %v", err)
	}
	if state != PowerStateOn {
		t.Errorf("state = %v, want ON", state)
	}

	state, err = ParsePower("POWERZONE2(0)", Zone2)
	if err != nil {
		t.Fatalf("ParsePower zone2: %v", err)
	}
	if state != PowerStateOff {
		t.Errorf("state = %v, want OFF", state)
	}

	if _, err := ParsePower("POWER(7)", ZoneMain); err == nil {
		t.Error("expected error for power value 7")
	}
	if _, err := ParsePower("POWERZONE2(1)", ZoneMain); err == nil {
		t.Error("expected verb mismatch error")
	}
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		payload string
		zone    Zone
		want    float64
	}{
		{"VOL(-350)", ZoneMain, -35.0},
		{"VOL(240)", ZoneMain, 24.0},
		{"VOL(0)", ZoneMain, 0},
		{"ZVOL(-550)", Zone2, -55.0},
	}
	for _, tt := range tests {
		got, err := ParseVolume(tt.payload, tt.zone)
		if err != nil {
			t.Errorf("ParseVolume(%q): %v", tt.payload, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVolume(%q) = %v, want %v", tt.payload, got, tt.want)
		}
	}

	if _, err := ParseVolume("VOL(abc)", ZoneMain); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestParseMute(t *testing.T) {
	muted, err := ParseMute("MUTE(1)", ZoneMain)
	if err != nil || !muted {
		t.Errorf("ParseMute(MUTE(1)) = %v, %v", muted, err)
	}
	muted, err = ParseMute("ZMUTE(0)", Zone2)
	if err != nil || muted {
		t.Errorf("ParseMute(ZMUTE(0)) = %v, %v", muted, err)
	}
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource(`SRC(2)"Tuner"`)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if src.Index != 2 || src.Name != "Tuner" {
		t.Errorf("got %+v", src)
	}

	// Unsolicited pushes may omit the name.
	src, err = ParseSource("SRC(4)")
	if err != nil {
		t.Fatalf("ParseSource without name: %v", err)
	}
	if src.Index != 4 || src.Name != "" {
		t.Errorf("got %+v", src)
	}
}

func TestParseSourceList(t *testing.T) {
	payloads := []string{
		"SRCCOUNT(3)",
		`SRC(0)"Blu-ray"`,
		`SRC(1)"DVD Player"`,
		`SRC(2)"Tuner"`,
	}
	sources, err := ParseSourceList(payloads)
	if err != nil {
		t.Fatalf("ParseSourceList: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("got %d sources, want 3", len(sources))
	}
	if sources[1].Index != 1 || sources[1].Name != "DVD Player" {
		t.Errorf("sources[1] = %+v", sources[1])
	}

	if _, err := ParseSourceList(payloads[:2]); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("count mismatch err = %v, want ErrMalformedPayload", err)
	}
	if _, err := ParseSourceList(nil); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("empty err = %v, want ErrMalformedPayload", err)
	}
}

func TestParseAudioModeList(t *testing.T) {
	payloads := []string{
		"AUDMODECOUNT(2)",
		`AUDMODE(0)"Direct"`,
		`AUDMODE(1)"Dolby Surround"`,
	}
	modes, err := ParseAudioModeList(payloads)
	if err != nil {
		t.Fatalf("ParseAudioModeList: %v", err)
	}
	if len(modes) != 2 || modes[1].Name != "Dolby Surround" {
		t.Errorf("got %+v", modes)
	}
}

func TestParseAudioType(t *testing.T) {
	got, err := ParseAudioType(`AUDTYPE(7)"Dolby Atmos 7.1.4"`)
	if err != nil {
		t.Fatalf("ParseAudioType: %v", err)
	}
	if got != "Dolby Atmos 7.1.4" {
		t.Errorf("got %q", got)
	}

	// Some firmware replies without the quoted part.
	got, err = ParseAudioType("AUDTYPE(2)")
	if err != nil {
		t.Fatalf("ParseAudioType bare: %v", err)
	}
	if got != "2" {
		t.Errorf("got %q, want raw value", got)
	}
}
