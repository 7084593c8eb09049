package content

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blogpress/internal/storage"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()

	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestImportDir(t *testing.T) {
	t.Parallel()

	e := setup(t)
	ctx := context.Background()
	dir := t.TempDir()

	writeFile(t, dir, "posts/eating.md", []byte(`---
title: Eating Well
description: A short guide
tags: [food, health]
category: Diet & Lifestyle
image: cover.png
---
Some text.

![plate](img/plate.png)
`))
	writeFile(t, dir, "posts/cover.png", gradientPNG(t, 30, 30))
	writeFile(t, dir, "posts/img/plate.png", gradientPNG(t, 20, 20))

	writeFile(t, dir, "loose.md", []byte("intro line\n# Plain Heading\n\nbody text\n"))
	writeFile(t, dir, "draft.md", []byte("---\ntitle: Not Yet\ndraft: true\ncategory: diet lifestyle\n---\nbody\n"))
	writeFile(t, dir, "broken.md", []byte("---\ntitle: Broken\nimage: nowhere.png\n---\nbody\n"))
	writeFile(t, dir, "notes.txt", []byte("ignored"))

	report, err := NewImporter(e.posts, e.categories, e.media, discardLogger).ImportDir(ctx, dir)
	if err != nil {
		t.Fatalf("ImportDir: %v", err)
	}

	if len(report.Imported) != 3 {
		t.Errorf("imported %v, want 3 posts", report.Imported)
	}
	if len(report.Failed) != 1 || report.Failed[0].Path != "broken.md" {
		t.Errorf("failed = %+v, want only broken.md", report.Failed)
	}

	eating, err := e.posts.Get(ctx, "eating-well", false)
	if err != nil {
		t.Fatalf("Get eating-well: %v", err)
	}
	if eating.CategorySlug != "diet-lifestyle" || eating.Tags != "food, health" || eating.MetaDescription != "A short guide" {
		t.Errorf("unexpected post %+v", eating)
	}
	if eating.ImageURL == nil || !e.exists(t, strings.TrimPrefix(*eating.ImageURL, "/uploads/")) {
		t.Error("cover image not ingested")
	}
	if strings.Contains(eating.Description, "img/plate.png") || !strings.Contains(eating.Description, `src="/uploads/blogs/`) {
		t.Errorf("inline image not rewritten: %q", eating.Description)
	}

	loose, err := e.posts.Get(ctx, "plain-heading", false)
	if err != nil {
		t.Fatalf("Get plain-heading: %v", err)
	}
	if loose.CategorySlug != Slugify(defaultImportCategory) {
		t.Errorf("category = %q, want the default", loose.CategorySlug)
	}

	draft, err := e.posts.Get(ctx, "not-yet", true)
	if err != nil {
		t.Fatalf("Get not-yet: %v", err)
	}
	if draft.Status != storage.StatusDraft || draft.CategoryID != eating.CategoryID {
		t.Errorf("draft imported as %s in category %d", draft.Status, draft.CategoryID)
	}

	cats, err := e.categories.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cats) != 2 {
		t.Errorf("got %d categories, want 2", len(cats))
	}
}

func TestFallbackTitleScan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"# Title\nbody", "Title"},
		{"text\n#  Spaced  \n", "Spaced"},
		{"## Sub only\n", "Untitled Post"},
		{strings.Repeat("line\n", 25) + "# Too late\n", "Untitled Post"},
		{"", "Untitled Post"},
	}

	for _, tt := range tests {
		if got := fallbackTitleScan(strings.NewReader(tt.in)); got != tt.want {
			t.Errorf("fallbackTitleScan(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
