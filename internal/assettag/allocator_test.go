package assettag

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/opsdeck/opsdeck/internal/database"
	"github.com/opsdeck/opsdeck/internal/model"
	"github.com/opsdeck/opsdeck/internal/store"
)

func setupAllocator(t *testing.T) (*Allocator, *store.AssetStore, *store.AssetTagFormatStore, *store.CategoryStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	assets := store.NewAssetStore(db)
	formats := store.NewAssetTagFormatStore(db)
	categories := store.NewCategoryStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAllocator(assets, formats, logger), assets, formats, categories
}

func seedAsset(t *testing.T, assets *store.AssetStore, tag string) {
	t.Helper()
	if _, err := assets.Create(&model.Asset{
		AssetTag: tag,
		Name:     "asset " + tag,
		Status:   model.AssetInService,
	}); err != nil {
		t.Fatalf("seed asset %s: %v", tag, err)
	}
}

func saveGlobalFormat(t *testing.T, formats *store.AssetTagFormatStore, prefix string, start, padding int) {
	t.Helper()
	if _, err := formats.Save(&model.AssetTagFormat{
		Prefix:        prefix,
		StartNumber:   start,
		PaddingLength: padding,
	}); err != nil {
		t.Fatalf("save format: %v", err)
	}
}

func TestNextGlobalNotConfigured(t *testing.T) {
	a, _, _, _ := setupAllocator(t)
	_, err := a.NextGlobal()
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestNextGlobalEmptyNamespace(t *testing.T) {
	a, _, formats, _ := setupAllocator(t)
	saveGlobalFormat(t, formats, "IT-", 1, 4)

	tag, err := a.NextGlobal()
	if err != nil {
		t.Fatalf("next global: %v", err)
	}
	if tag != "IT-0001" {
		t.Errorf("tag = %q, want IT-0001", tag)
	}
}

func TestNextGlobalFillsGap(t *testing.T) {
	a, assets, formats, _ := setupAllocator(t)
	saveGlobalFormat(t, formats, "P-", 1, 2)

	// P-01, P-02, P-04 taken: the gap at 3 is filled before the sequence grows.
	seedAsset(t, assets, "P-01")
	seedAsset(t, assets, "P-02")
	seedAsset(t, assets, "P-04")

	tag, err := a.NextGlobal()
	if err != nil {
		t.Fatalf("next global: %v", err)
	}
	if tag != "P-03" {
		t.Errorf("tag = %q, want P-03", tag)
	}
}

func TestNextGlobalIdempotentWithoutPersist(t *testing.T) {
	a, _, formats, _ := setupAllocator(t)
	saveGlobalFormat(t, formats, "IT-", 1, 4)

	first, err := a.NextGlobal()
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := a.NextGlobal()
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first != second {
		t.Errorf("repeat allocation changed: %q then %q", first, second)
	}
}

func TestNextGlobalSkipsForeignSuffixes(t *testing.T) {
	a, assets, formats, _ := setupAllocator(t)
	saveGlobalFormat(t, formats, "IT-", 1, 4)

	// A tag under the prefix with a non-numeric suffix cannot occupy a number.
	seedAsset(t, assets, "IT-LEGACY")
	seedAsset(t, assets, "IT-0001")

	tag, err := a.NextGlobal()
	if err != nil {
		t.Fatalf("next global: %v", err)
	}
	if tag != "IT-0002" {
		t.Errorf("tag = %q, want IT-0002", tag)
	}
}

func TestNextGlobalRespectsStartNumber(t *testing.T) {
	a, _, formats, _ := setupAllocator(t)
	saveGlobalFormat(t, formats, "SRV-", 100, 3)

	tag, err := a.NextGlobal()
	if err != nil {
		t.Fatalf("next global: %v", err)
	}
	if tag != "SRV-100" {
		t.Errorf("tag = %q, want SRV-100", tag)
	}
}

func TestNextByCategoryGapScan(t *testing.T) {
	a, assets, formats, categories := setupAllocator(t)

	cat, err := categories.Create("Laptops", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := formats.Save(&model.AssetTagFormat{
		CategoryID:    &cat.ID,
		Prefix:        "LAP-",
		StartNumber:   1,
		PaddingLength: 3,
	}); err != nil {
		t.Fatalf("save format: %v", err)
	}
	seedAsset(t, assets, "LAP-001")

	tag, err := a.NextByCategory(cat.ID)
	if err != nil {
		t.Fatalf("next by category: %v", err)
	}
	if tag != "LAP-002" {
		t.Errorf("tag = %q, want LAP-002", tag)
	}
}

func TestNextByCategoryCounterBased(t *testing.T) {
	a, _, formats, categories := setupAllocator(t)

	cat, err := categories.Create("Monitors", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := formats.Save(&model.AssetTagFormat{
		CategoryID:    &cat.ID,
		Prefix:        "MON-",
		StartNumber:   1,
		PaddingLength: 3,
		AutoIncrement: true,
	}); err != nil {
		t.Fatalf("save format: %v", err)
	}

	tag, err := a.NextByCategory(cat.ID)
	if err != nil {
		t.Fatalf("next by category: %v", err)
	}
	if tag != "MON-001" {
		t.Errorf("tag = %q, want MON-001", tag)
	}

	// Previewing never advances the counter.
	again, _ := a.NextByCategory(cat.ID)
	if again != tag {
		t.Errorf("preview advanced the counter: %q then %q", tag, again)
	}

	// Reserve is the commit step.
	if err := a.Reserve(cat.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	next, err := a.NextByCategory(cat.ID)
	if err != nil {
		t.Fatalf("next after reserve: %v", err)
	}
	if next != "MON-002" {
		t.Errorf("tag after reserve = %q, want MON-002", next)
	}
}

func TestCounterClampsToStartNumber(t *testing.T) {
	a, _, formats, categories := setupAllocator(t)

	cat, err := categories.Create("Servers", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := formats.Save(&model.AssetTagFormat{
		CategoryID:    &cat.ID,
		Prefix:        "SRV-",
		StartNumber:   100,
		PaddingLength: 3,
		AutoIncrement: true,
	}); err != nil {
		t.Fatalf("save format: %v", err)
	}

	// Counter below the start number: the candidate clamps up.
	tag, err := a.NextByCategory(cat.ID)
	if err != nil {
		t.Fatalf("next by category: %v", err)
	}
	if tag != "SRV-100" {
		t.Errorf("tag = %q, want SRV-100", tag)
	}
}

func TestReserveNotConfigured(t *testing.T) {
	a, _, _, categories := setupAllocator(t)
	cat, err := categories.Create("Phones", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if err := a.Reserve(cat.ID); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestNextTagParsesPaddedSuffixes(t *testing.T) {
	a, assets, _, _ := setupAllocator(t)

	// Padded and unpadded suffixes land in the same number space.
	seedAsset(t, assets, "X-01")
	seedAsset(t, assets, "X-2")

	format := &model.AssetTagFormat{Prefix: "X-", StartNumber: 1, PaddingLength: 2}
	tag, err := a.NextTag(format)
	if err != nil {
		t.Fatalf("next tag: %v", err)
	}
	if tag != "X-03" {
		t.Errorf("tag = %q, want X-03", tag)
	}
}

func TestFormatTagPadding(t *testing.T) {
	cases := []struct {
		prefix  string
		padding int
		number  int
		want    string
	}{
		{"IT-", 4, 1, "IT-0001"},
		{"IT-", 4, 12345, "IT-12345"},
		{"A", 1, 3, "A3"},
		{"SRV-", 3, 42, "SRV-042"},
	}
	for _, c := range cases {
		f := &model.AssetTagFormat{Prefix: c.prefix, PaddingLength: c.padding}
		if got := FormatTag(f, c.number); got != c.want {
			t.Errorf("FormatTag(%q, %d, %d) = %q, want %q", c.prefix, c.padding, c.number, got, c.want)
		}
	}
}
