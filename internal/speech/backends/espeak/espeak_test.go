package espeak

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/cheamigo/cheamigo/internal/speech/engine"
)

const voiceListing = `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  es              --/M      Spanish_(Spain)    roa/es
 5  es-419          --/M      Spanish_(Latin_America) roa/es-419       (es-mx 6)
 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)
`

// fakeBinary writes a shell script standing in for espeak. Texts containing
// "fallar" exit with an error, texts containing "lento" block.
func fakeBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script binary")
	}
	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"--voices\" ]; then\ncat <<'EOF'\n" + voiceListing + "EOF\nexit 0\nfi\n" +
		"case \"$*\" in\n" +
		"  *fallar*) echo 'voz rota' >&2; exit 1;;\n" +
		"  *lento*) exec sleep 10;;\n" +
		"esac\nexit 0\n"

	path := filepath.Join(t.TempDir(), "espeak")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func await(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("utterance did not resolve")
		return nil
	}
}

func TestParseVoices(t *testing.T) {
	voices := parseVoices(strings.NewReader(voiceListing), "roa/es-419")

	want := []engine.Voice{
		{ID: "roa/es", Name: "Spanish (Spain)", Language: "es"},
		{ID: "roa/es-419", Name: "Spanish (Latin America)", Language: "es-419", Default: true},
		{ID: "gmw/en-US", Name: "English (America)", Language: "en-us"},
	}
	if !reflect.DeepEqual(voices, want) {
		t.Errorf("parseVoices =\n%+v\nwant\n%+v", voices, want)
	}
}

func TestArgs(t *testing.T) {
	u := engine.Utterance{
		Text:     "Hola",
		Language: "es-419",
		Volume:   0.5,
		Rate:     2,
		Pitch:    2,
		Voice:    &engine.Voice{ID: "roa/es", Language: "es"},
	}
	want := []string{"-a", "100", "-s", "350", "-p", "99", "-v", "es", "--", "Hola"}
	if got := Args(u); !reflect.DeepEqual(got, want) {
		t.Errorf("Args = %v, want %v", got, want)
	}

	u.Voice = nil
	got := Args(u)
	if got[7] != "es-419" {
		t.Errorf("without a voice the language tag should be used, got %v", got)
	}
}

func TestUnavailableWithoutBinary(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"), "")
	if s.Available() {
		t.Error("missing binary reported as available")
	}
	if v := s.Voices(); len(v) != 0 {
		t.Errorf("voices = %+v, want none", v)
	}
}

func TestSpeakLifecycle(t *testing.T) {
	s := New(fakeBinary(t), "es-419")
	defer s.Close()

	if !s.Available() {
		t.Fatal("fake binary not available")
	}
	if n := len(s.Voices()); n != 3 {
		t.Fatalf("voices = %d, want 3", n)
	}

	u := engine.Utterance{ID: "ok", Text: "Hola", Language: "es-419", Volume: 1, Rate: 1, Pitch: 1}
	if err := await(t, s.Speak(u)); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	u = engine.Utterance{ID: "bad", Text: "fallar", Language: "es-419", Volume: 1, Rate: 1, Pitch: 1}
	err := await(t, s.Speak(u))
	if engine.CodeOf(err) != engine.CodeSynthesisFailed {
		t.Fatalf("code = %q, want synthesis-failed", engine.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "voz rota") {
		t.Errorf("error %q should include stderr", err)
	}
}

func TestCancelAllKillsProcess(t *testing.T) {
	s := New(fakeBinary(t), "")
	defer s.Close()

	u := engine.Utterance{ID: "slow", Text: "lento", Language: "es-419", Volume: 1, Rate: 1, Pitch: 1}
	ch := s.Speak(u)
	s.CancelAll()

	if err := await(t, ch); engine.CodeOf(err) != engine.CodeCanceled {
		t.Fatalf("code = %q, want canceled", engine.CodeOf(err))
	}
}

func TestSpeakAfterClose(t *testing.T) {
	s := New(fakeBinary(t), "")
	s.Close()

	err := await(t, s.Speak(engine.Utterance{ID: "x", Text: "Hola"}))
	if engine.CodeOf(err) != engine.CodeSynthesisUnavailable {
		t.Fatalf("code = %q, want synthesis-unavailable", engine.CodeOf(err))
	}
}
