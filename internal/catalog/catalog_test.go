package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mschirtzinger/tally/internal/schema"
)

func ptr[T any](v T) *T { return &v }

func TestDefault_UniqueIDsAndSlugs(t *testing.T) {
	ids := map[string]bool{}
	slugs := map[string]bool{}
	for _, h := range Default() {
		if ids[h.ID] || slugs[h.Slug] {
			t.Errorf("duplicate habit %+v", h)
		}
		ids[h.ID] = true
		slugs[h.Slug] = true
	}
}

func TestDefault_ReturnsCopy(t *testing.T) {
	d := Default()
	d[0].Name = "changed"
	if Default()[0].Name == "changed" {
		t.Error("Default() exposes the package slice")
	}
}

func TestResolve(t *testing.T) {
	settings := schema.Settings{
		CustomHabits: []schema.Habit{{ID: "c1", Slug: "stretch", Name: "Stretch", Order: 3}},
		HabitOverrides: map[string]schema.HabitOverride{
			"hab-water":    {Target: ptr(3.0)},
			"hab-journal":  {Archived: ptr(true)},
			"hab-exercise": {Name: ptr("Move")},
		},
	}

	got := Resolve(Default(), settings)

	if _, ok := BySlug(got, "journal"); ok {
		t.Error("archived habit still resolved")
	}
	if h, _ := BySlug(got, "water"); h.Target != 3 {
		t.Errorf("water target = %v, want 3", h.Target)
	}
	if h, _ := BySlug(got, "exercise"); h.Name != "Move" {
		t.Errorf("exercise name = %q, want Move", h.Name)
	}
	h, ok := BySlug(got, "stretch")
	if !ok || !h.Custom {
		t.Errorf("custom habit = %+v, %v", h, ok)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Order > got[i].Order {
			t.Fatalf("not sorted by order at %d", i)
		}
	}
}

func TestSlugMap_KeepsArchived(t *testing.T) {
	settings := schema.Settings{HabitOverrides: map[string]schema.HabitOverride{"hab-journal": {Archived: ptr(true)}}}
	if got := SlugMap(Default(), settings)["hab-journal"]; got != "journal" {
		t.Errorf("SlugMap[hab-journal] = %q, want journal", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "habits.toml")
	content := `
[habits.hab-water]
target = 2.5
unit = "litres"

[habits.hab-doomscroll]
archived = true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides() failed: %v", err)
	}
	if o := got["hab-water"]; o.Target == nil || *o.Target != 2.5 || *o.Unit != "litres" {
		t.Errorf("hab-water override = %+v", o)
	}
	if o := got["hab-doomscroll"]; o.Archived == nil || !*o.Archived {
		t.Errorf("hab-doomscroll override = %+v", o)
	}

	settings := MergeOverrides(schema.Settings{HabitOverrides: map[string]schema.HabitOverride{
		"hab-water": {Target: ptr(4.0)},
	}}, got)
	if o := settings.HabitOverrides["hab-water"]; *o.Target != 4 || *o.Unit != "litres" {
		t.Errorf("merged override = %+v", o)
	}
}

func TestLoadOverrides_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	_ = os.WriteFile(path, []byte("[habits\n"), 0644)
	if _, err := LoadOverrides(path); err == nil {
		t.Error("expected parse error")
	}
}
