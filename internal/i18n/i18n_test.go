// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package i18n

import (
	"io/fs"
	"sort"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInit_MatchesLanguage(t *testing.T) {
	tests := map[string]string{
		"en":          "en",
		"de":          "de",
		"de_DE.UTF-8": "de",
		"de-AT":       "de",
		"fr":          "en",
		"":            "en",
	}
	for in, want := range tests {
		if got := Init(in); got != want {
			t.Errorf("Init(%q) = %q, want %q", in, got, want)
		}
	}
	Init("en")
}

func TestT_TranslatesWithTemplateData(t *testing.T) {
	defer Init("en")

	Init("en")
	if got := T("cli.user_added", map[string]any{"Email": "a@example.com"}); got != "Added user a@example.com." {
		t.Errorf("en = %q", got)
	}
	Init("de")
	if got := T("cli.user_added", map[string]any{"Email": "a@example.com"}); got != "Benutzer a@example.com hinzugefügt." {
		t.Errorf("de = %q", got)
	}
	if got := T("no.such.message"); got != "no.such.message" {
		t.Errorf("unknown id = %q", got)
	}
}

func TestLanguages(t *testing.T) {
	got := Languages()
	sort.Strings(got)
	if len(got) != 2 || got[0] != "de" || got[1] != "en" {
		t.Fatalf("Languages = %v", got)
	}
}

// TestLocalesHaveSameKeys keeps the translations complete.
func TestLocalesHaveSameKeys(t *testing.T) {
	load := func(name string) map[string]string {
		data, err := fs.ReadFile(localeFS, "locales/"+name)
		if err != nil {
			t.Fatal(err)
		}
		var m map[string]string
		if err := yaml.Unmarshal(data, &m); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		return m
	}
	en, de := load("en.yaml"), load("de.yaml")
	for k := range en {
		if _, ok := de[k]; !ok {
			t.Errorf("de.yaml misses %s", k)
		}
	}
	for k := range de {
		if _, ok := en[k]; !ok {
			t.Errorf("en.yaml has no %s", k)
		}
	}
}
