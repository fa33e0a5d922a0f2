// Package assettag computes asset tags in a gapped numeric sequence under a
// prefix namespace. Released numbers are reused before the sequence grows.
package assettag

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/store"
)

// ErrNotConfigured means no tag format exists for the requested namespace.
var ErrNotConfigured = errors.New("asset tag format not configured")

// Allocator generates the next free tag for a namespace by scanning existing
// tags. There is no cross-request locking: two concurrent allocations can
// observe the same gap, which the final existence check narrows but does not
// eliminate (the fallback increments once and does not re-scan).
type Allocator struct {
	assets  *store.AssetStore
	formats *store.AssetTagFormatStore
	logger  *slog.Logger
}

func NewAllocator(assets *store.AssetStore, formats *store.AssetTagFormatStore, logger *slog.Logger) *Allocator {
	return &Allocator{assets: assets, formats: formats, logger: logger}
}

// NextTag returns the lowest free tag under the format's prefix: the
// smallest integer >= start number whose formatted tag is not already taken.
// Calling it twice without persisting the first tag returns the same tag.
func (a *Allocator) NextTag(format *model.AssetTagFormat) (string, error) {
	tags, err := a.assets.TagsWithPrefix(format.Prefix)
	if err != nil {
		return "", fmt.Errorf("scan namespace %q: %w", format.Prefix, err)
	}

	used := make(map[int]bool, len(tags))
	for _, tag := range tags {
		suffix := strings.TrimPrefix(tag, format.Prefix)
		n, err := strconv.Atoi(suffix)
		if err != nil {
			// Foreign tag under the same prefix; it cannot collide with a
			// numeric suffix, so skip it.
			continue
		}
		used[n] = true
	}

	start := format.StartNumber
	if start < 1 {
		start = 1
	}
	number := start
	for used[number] {
		number++
	}

	tag := FormatTag(format, number)

	// Narrow collision handler for a race with a concurrent allocation:
	// fall back to number+1 once rather than re-scanning.
	exists, err := a.assets.TagExists(tag)
	if err != nil {
		return "", fmt.Errorf("check tag %q: %w", tag, err)
	}
	if exists {
		a.logger.Warn("tag collision on final check, falling back once", "tag", tag)
		tag = FormatTag(format, number+1)
	}

	return tag, nil
}

// NextGlobal allocates from the category-less namespace.
func (a *Allocator) NextGlobal() (string, error) {
	format, err := a.formats.Global()
	if err != nil {
		return "", err
	}
	if format == nil {
		return "", ErrNotConfigured
	}
	return a.NextTag(format)
}

// NextByCategory allocates from a category's namespace. Counter-based
// namespaces derive the candidate from the persisted counter instead of the
// gap scan; the counter only advances on Reserve.
func (a *Allocator) NextByCategory(categoryID int64) (string, error) {
	format, err := a.formats.ByCategory(categoryID)
	if err != nil {
		return "", err
	}
	if format == nil {
		return "", ErrNotConfigured
	}
	if format.AutoIncrement {
		number := format.CurrentNumber + 1
		if number < format.StartNumber {
			number = format.StartNumber
		}
		return FormatTag(format, number), nil
	}
	return a.NextTag(format)
}

// Reserve is the commit step for counter-based namespaces: it advances the
// persisted counter independently of the gap-filling scan. The two
// mechanisms coexist for different namespace kinds and are not unified.
func (a *Allocator) Reserve(categoryID int64) error {
	format, err := a.formats.ByCategory(categoryID)
	if err != nil {
		return err
	}
	if format == nil {
		return ErrNotConfigured
	}
	return a.formats.IncrementCurrent(format.ID)
}

// FormatTag renders prefix + zero-padded number.
func FormatTag(format *model.AssetTagFormat, number int) string {
	return fmt.Sprintf("%s%0*d", format.Prefix, format.PaddingLength, number)
}
