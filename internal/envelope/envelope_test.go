package envelope

import "testing"

func TestDecode(t *testing.T) {
	env := Decode(`{"text":"hello","lang":"ta-IN","location":{"lat":13.08,"long":80.27}}`)
	if env.Text != "hello" {
		t.Errorf("text = %q", env.Text)
	}
	if env.Locale != "ta-IN" {
		t.Errorf("locale = %q", env.Locale)
	}
	if env.Location == nil || env.Location.Lat != 13.08 || env.Location.Long != 80.27 {
		t.Errorf("location = %+v", env.Location)
	}
}

func TestDecodeMalformedFallsBackToRawText(t *testing.T) {
	for _, raw := range []string{"plain text", `{"text": broken`, ""} {
		env := Decode(raw)
		if env.Text != raw {
			t.Errorf("Decode(%q).Text = %q, want raw input", raw, env.Text)
		}
		if env.Locale != "" || env.Location != nil {
			t.Errorf("Decode(%q) should carry no locale or location", raw)
		}
	}
}

func TestDecodeIncrementalCompleteFragment(t *testing.T) {
	env, complete := DecodeIncremental(`{"lang":"en-US","text":"done"}`)
	if !complete {
		t.Fatal("expected complete=true for well-formed JSON")
	}
	if env.Text != "done" {
		t.Errorf("text = %q", env.Text)
	}
}

func TestDecodeIncrementalTruncated(t *testing.T) {
	cases := []struct {
		name     string
		fragment string
		wantText string
	}{
		{"mid string", `{"lang":"en-US","text":"Hello wo`, "Hello wo"},
		{"resolves escapes", `{"text":"line1\nline2\tend \"quoted\" back\\slash`, "line1\nline2\tend \"quoted\" back\\slash"},
		{"dangling backslash dropped", `{"text":"abc\`, "abc"},
		{"closed string, open object", `{"text":"full text"`, "full text"},
		{"object start only", `{"la`, ""},
		{"empty object start", `{`, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env, complete := DecodeIncremental(c.fragment)
			if complete {
				t.Error("truncated fragment reported complete")
			}
			if env.Text != c.wantText {
				t.Errorf("text = %q, want %q", env.Text, c.wantText)
			}
		})
	}
}

func TestDecodeIncrementalPlainText(t *testing.T) {
	env, complete := DecodeIncremental("not json at all")
	if complete {
		t.Error("plain text reported complete")
	}
	if env.Text != "not json at all" {
		t.Errorf("text = %q", env.Text)
	}
}

func TestDecodeIncrementalLocale(t *testing.T) {
	env, _ := DecodeIncremental(`{"lang":"hi-IN","text":"नमस`)
	if env.Locale != "hi-IN" {
		t.Errorf("locale = %q, want hi-IN", env.Locale)
	}
}

func TestNormalizeLocale(t *testing.T) {
	if got := NormalizeLocale("ta-IN"); got != "ta-IN" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeLocale("xx-XX"); got != DefaultLocale {
		t.Errorf("got %q, want default", got)
	}
	if got := NormalizeLocale(""); got != DefaultLocale {
		t.Errorf("got %q, want default", got)
	}
}

func TestEncode(t *testing.T) {
	out := Encode("de-DE", "hallo")
	if out != `{"lang":"de-DE","text":"hallo"}` {
		t.Errorf("Encode = %s", out)
	}
	// Unknown locales are normalized rather than leaked onto the wire.
	out = Encode("klingon", "hi")
	if out != `{"lang":"en-US","text":"hi"}` {
		t.Errorf("Encode = %s", out)
	}
}

func TestFallbackText(t *testing.T) {
	for _, locale := range SupportedLocales {
		if FallbackText(locale) == "" {
			t.Errorf("no fallback text for %s", locale)
		}
	}
	if FallbackText("unknown") != FallbackText(DefaultLocale) {
		t.Error("unknown locale should use the default fallback")
	}
}
