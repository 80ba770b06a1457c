package config

import "testing"

func TestDiffConfigsLogLevelChange(t *testing.T) {
	old := &Config{Server: ServerConfig{LogLevel: LogLevelInfo}}
	new := &Config{Server: ServerConfig{LogLevel: LogLevelDebug}}

	d := DiffConfigs(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged = true")
	}
	if d.NewLogLevel != LogLevelDebug {
		t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, LogLevelDebug)
	}
}

func TestDiffConfigsNoChange(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{LogLevel: LogLevelInfo},
		Upstream: []UpstreamConfig{{Name: "alpha", Enabled: true}},
	}
	d := DiffConfigs(cfg, cfg)
	if d.LogLevelChanged || d.UpstreamChanged {
		t.Errorf("expected no changes, got %+v", d)
	}
}

func TestDiffConfigsUpstreamAddedAndRemoved(t *testing.T) {
	old := &Config{Upstream: []UpstreamConfig{{Name: "alpha"}}}
	new := &Config{Upstream: []UpstreamConfig{{Name: "beta"}}}

	d := DiffConfigs(old, new)
	if !d.UpstreamChanged {
		t.Fatal("expected UpstreamChanged = true")
	}

	var sawAdded, sawRemoved bool
	for _, c := range d.UpstreamChanges {
		switch c.Name {
		case "beta":
			if !c.Added {
				t.Errorf("expected beta to be marked Added, got %+v", c)
			}
			sawAdded = true
		case "alpha":
			if !c.Removed {
				t.Errorf("expected alpha to be marked Removed, got %+v", c)
			}
			sawRemoved = true
		}
	}
	if !sawAdded || !sawRemoved {
		t.Errorf("expected both an added and a removed entry, got %+v", d.UpstreamChanges)
	}
}

func TestDiffConfigsUpstreamEnabledEnvArgsChanged(t *testing.T) {
	old := &Config{Upstream: []UpstreamConfig{{
		Name:    "alpha",
		Enabled: false,
		Env:     map[string]string{"FOO": "1"},
		Args:    []string{"--flag"},
	}}}
	new := &Config{Upstream: []UpstreamConfig{{
		Name:    "alpha",
		Enabled: true,
		Env:     map[string]string{"FOO": "2"},
		Args:    []string{"--flag", "--other"},
	}}}

	d := DiffConfigs(old, new)
	if !d.UpstreamChanged {
		t.Fatal("expected UpstreamChanged = true")
	}
	if len(d.UpstreamChanges) != 1 {
		t.Fatalf("expected 1 upstream change, got %d", len(d.UpstreamChanges))
	}
	c := d.UpstreamChanges[0]
	if !c.EnabledChanged || !c.NewEnabled {
		t.Errorf("expected EnabledChanged=true, NewEnabled=true, got %+v", c)
	}
	if !c.EnvChanged {
		t.Error("expected EnvChanged = true")
	}
	if !c.ArgsChanged {
		t.Error("expected ArgsChanged = true")
	}
}

func TestMapsEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]string
		want bool
	}{
		{"both nil", nil, nil, true},
		{"equal", map[string]string{"a": "1"}, map[string]string{"a": "1"}, true},
		{"different value", map[string]string{"a": "1"}, map[string]string{"a": "2"}, false},
		{"different length", map[string]string{"a": "1"}, map[string]string{"a": "1", "b": "2"}, false},
	}
	for _, tt := range tests {
		if got := mapsEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: mapsEqual() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSlicesEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want bool
	}{
		{"both nil", nil, nil, true},
		{"equal", []string{"a", "b"}, []string{"a", "b"}, true},
		{"different order", []string{"a", "b"}, []string{"b", "a"}, false},
		{"different length", []string{"a"}, []string{"a", "b"}, false},
	}
	for _, tt := range tests {
		if got := slicesEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: slicesEqual() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
