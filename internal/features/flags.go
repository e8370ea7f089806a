// Package features answers whether a named feature is switched on.
// Config supplies the defaults; a value stored under feature:<name> overrides them at runtime.
package features

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cola500/equinet/internal/cache"
)

const (
	RecurringBookings = "recurring_bookings"
	GroupBookings     = "group_bookings"
)

// builtin holds the value a flag takes when config does not mention it.
var builtin = map[string]bool{
	RecurringBookings: true,
}

// WithDefaults returns a copy of configured with the built-in defaults filled in for
// missing keys. A configured value, true or false, always wins.
func WithDefaults(configured map[string]bool) map[string]bool {
	out := make(map[string]bool, len(configured)+len(builtin))
	for k, v := range builtin {
		out[k] = v
	}
	for k, v := range configured {
		out[k] = v
	}
	return out
}

type Flags struct {
	defaults map[string]bool
	store    cache.BytesCache
}

// New copies defaults. store may be nil, in which case only defaults apply.
func New(defaults map[string]bool, store cache.BytesCache) *Flags {
	d := make(map[string]bool, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	return &Flags{defaults: d, store: store}
}

// IsEnabled never fails: an unreadable override falls back to the default.
func (f *Flags) IsEnabled(ctx context.Context, name string) bool {
	def := f.defaults[name]
	if f.store == nil {
		return def
	}
	b, ok, err := f.store.Get(ctx, key(name))
	if err != nil {
		slog.Warn("feature flag lookup", "flag", name, "error", err.Error())
		return def
	}
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(strings.TrimSpace(string(b)))
	if err != nil {
		slog.Warn("feature flag value", "flag", name, "value", string(b))
		return def
	}
	return v
}

// Override stores a runtime value for name.
func (f *Flags) Override(ctx context.Context, name string, enabled bool) error {
	if f.store == nil {
		return nil
	}
	return f.store.Set(ctx, key(name), []byte(strconv.FormatBool(enabled)), 0)
}

// Reset removes the runtime value so the default applies again.
func (f *Flags) Reset(ctx context.Context, name string) error {
	if f.store == nil {
		return nil
	}
	return f.store.Delete(ctx, key(name))
}

func key(name string) string {
	return "feature:" + name
}
