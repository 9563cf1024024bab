package eviction

import (
	"github.com/jmgilman/go/errors"

	"github.com/IvanBrykalov/pojocache/fqn"
)

// ConfigError reports a missing or invalid configuration attribute.
func ConfigError(format string, args ...any) error {
	return errors.Newf(errors.CodeInvalidConfig, format, args...)
}

func regionConflict(f, existing fqn.Fqn) error {
	err := errors.Newf(errors.CodeConflict,
		"eviction: region %s conflicts with existing region %s", f, existing)
	return errors.WithContextMap(err, map[string]interface{}{
		"region":   f.String(),
		"existing": existing.String(),
	})
}

func illegalEvent(ev Event) error {
	return errors.Newf(errors.CodeInternal, "eviction: illegal event type %s for %s", ev.Type, ev.Fqn)
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return errors.GetCode(err) == errors.CodeInvalidConfig
}

// IsRegionConflict reports whether err is a region naming conflict.
func IsRegionConflict(err error) bool {
	return errors.GetCode(err) == errors.CodeConflict
}
