package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; changes to
// providers, stores or the listen address need a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// StreamChanged is set when window size, overlap or the minimum
	// transcript length changed. Open sessions pick up the new values.
	StreamChanged bool

	// ResolveChanged is set when semantic thresholds or paraphrase
	// tunables changed.
	ResolveChanged bool

	// RestartRequired lists config sections that changed but are only read
	// at startup.
	RestartRequired []string
}

// HasChanges reports whether d contains any hot-reloadable change.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.StreamChanged || d.ResolveChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Stream.WindowSize != new.Stream.WindowSize ||
		old.Stream.OverlapSamples() != new.Stream.OverlapSamples() ||
		old.Stream.MinTranscriptChars != new.Stream.MinTranscriptChars {
		d.StreamChanged = true
	}

	oldSem, newSem := old.Semantic, new.Semantic
	if oldSem.TopK != newSem.TopK || oldSem.Threshold != newSem.Threshold ||
		oldSem.FallbackFullText != newSem.FallbackFullText || oldSem.FallbackThreshold != newSem.FallbackThreshold ||
		old.Paraphrase != new.Paraphrase {
		d.ResolveChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !sameProviders(old.Providers.STT, new.Providers.STT) {
		d.RestartRequired = append(d.RestartRequired, "providers.stt")
	}
	if !sameProviders(old.Providers.Embeddings, new.Providers.Embeddings) {
		d.RestartRequired = append(d.RestartRequired, "providers.embeddings")
	}
	if old.Bible.Store != new.Bible.Store || old.Bible.PostgresDSN != new.Bible.PostgresDSN {
		d.RestartRequired = append(d.RestartRequired, "bible")
	}
	if oldSem.Backend != newSem.Backend || oldSem.EmbeddingsPath != newSem.EmbeddingsPath || oldSem.IndexPath != newSem.IndexPath {
		d.RestartRequired = append(d.RestartRequired, "semantic.backend")
	}
	if old.Stream.SampleRate != new.Stream.SampleRate || old.Stream.PausedKeep != new.Stream.PausedKeep {
		d.RestartRequired = append(d.RestartRequired, "stream.sample_rate")
	}
	if old.Phonetic != new.Phonetic {
		d.RestartRequired = append(d.RestartRequired, "phonetic")
	}
	if old.Announce.Discord != new.Announce.Discord || old.Announce.Remote != new.Announce.Remote {
		d.RestartRequired = append(d.RestartRequired, "announce")
	}

	return d
}

// sameProviders compares provider chains by name, model and endpoint.
func sameProviders(a, b []ProviderEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Model != b[i].Model ||
			a[i].BaseURL != b[i].BaseURL || a[i].APIKey != b[i].APIKey {
			return false
		}
	}
	return true
}
