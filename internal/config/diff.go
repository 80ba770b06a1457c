package config

// Diff describes what changed between two configs. Only upstream server
// enablement/env/args and log level are tracked.
type Diff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	UpstreamChanged bool
	UpstreamChanges []UpstreamDiff
}

// UpstreamDiff describes what changed for a single upstream server between
// two configs.
type UpstreamDiff struct {
	Name           string
	EnabledChanged bool
	NewEnabled     bool
	EnvChanged     bool
	ArgsChanged    bool
	Added          bool
	Removed        bool
}

// DiffConfigs compares old and new configs and returns what changed.
func DiffConfigs(old, new *Config) Diff {
	d := Diff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldServers := make(map[string]*UpstreamConfig, len(old.Upstream))
	for i := range old.Upstream {
		oldServers[old.Upstream[i].Name] = &old.Upstream[i]
	}
	newServers := make(map[string]*UpstreamConfig, len(new.Upstream))
	for i := range new.Upstream {
		newServers[new.Upstream[i].Name] = &new.Upstream[i]
	}

	for name, o := range oldServers {
		n, exists := newServers[name]
		if !exists {
			d.UpstreamChanges = append(d.UpstreamChanges, UpstreamDiff{Name: name, Removed: true})
			d.UpstreamChanged = true
			continue
		}
		ud := diffUpstream(name, o, n)
		if ud.EnabledChanged || ud.EnvChanged || ud.ArgsChanged {
			d.UpstreamChanges = append(d.UpstreamChanges, ud)
			d.UpstreamChanged = true
		}
	}

	for name := range newServers {
		if _, exists := oldServers[name]; !exists {
			d.UpstreamChanges = append(d.UpstreamChanges, UpstreamDiff{Name: name, Added: true})
			d.UpstreamChanged = true
		}
	}

	return d
}

// diffUpstream compares two upstream server configs with the same name.
func diffUpstream(name string, old, new *UpstreamConfig) UpstreamDiff {
	ud := UpstreamDiff{Name: name}

	if old.Enabled != new.Enabled {
		ud.EnabledChanged = true
		ud.NewEnabled = new.Enabled
	}
	if !mapsEqual(old.Env, new.Env) {
		ud.EnvChanged = true
	}
	if !slicesEqual(old.Args, new.Args) {
		ud.ArgsChanged = true
	}

	return ud
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
