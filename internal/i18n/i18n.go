// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package i18n translates the messages printed by the ufo command. English
// and German are embedded; any other language falls back to English.
package i18n

import (
	"embed"
	"io/fs"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	mu        sync.RWMutex
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	current   language.Tag
)

func loadBundle() *i18n.Bundle {
	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			continue
		}
		_, _ = b.ParseMessageFileBytes(data, f.Name())
	}
	return b
}

// Init selects the language for T and returns the tag actually used.
// lang may be a BCP 47 tag or a POSIX locale such as "de_DE.UTF-8".
func Init(lang string) string {
	mu.Lock()
	defer mu.Unlock()
	if bundle == nil {
		bundle = loadBundle()
	}
	matcher := language.NewMatcher(bundle.LanguageTags())
	tag, _, _ := matcher.Match(language.Make(posixToBCP47(lang)))
	base, _ := tag.Base()
	current = language.Make(base.String())
	localizer = i18n.NewLocalizer(bundle, current.String())
	return current.String()
}

// Languages lists the embedded languages.
func Languages() []string {
	mu.Lock()
	if bundle == nil {
		bundle = loadBundle()
	}
	tags := bundle.LanguageTags()
	mu.Unlock()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	return out
}

// T translates messageID, filling the template with data when given. An
// unknown ID is returned as is.
func T(messageID string, data ...map[string]any) string {
	mu.RLock()
	l := localizer
	mu.RUnlock()
	if l == nil {
		Init("en")
		mu.RLock()
		l = localizer
		mu.RUnlock()
	}
	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(data) > 0 {
		cfg.TemplateData = data[0]
	}
	msg, err := l.Localize(cfg)
	if err != nil {
		return messageID
	}
	return msg
}

func posixToBCP47(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	return strings.ReplaceAll(lang, "_", "-")
}
