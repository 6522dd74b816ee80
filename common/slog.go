package common

import "log/slog"

// SlogResetLevel sets the default slog level and returns a function that
// restores the previous level; pairs well with defer.
// Use like:
// func Test123(t *testing.T) {
//     defer common.SlogResetLevel(slog.LevelWarn + 1)()
func SlogResetLevel(level slog.Level) (reset func()) {
	oldLevel := slog.SetLogLoggerLevel(level)
	return func() {
		slog.SetLogLoggerLevel(oldLevel)
	}
}

// SlogLevelForVerbosity maps a CLI verbosity count onto a slog level.
// 0 is Warn, 1 is Info, 2 and up is Debug.
func SlogLevelForVerbosity(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelWarn
	case v == 1:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
