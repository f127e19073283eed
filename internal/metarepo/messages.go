package metarepo

import (
	"os"
	"path/filepath"
	"strings"
)

// MessageStore holds the repo's localized, simple-templated message
// strings, parsed from messages/<lang>/<msgid>.txt.
type MessageStore struct {
	byLangAndID map[string]map[string]string
}

// Messages loads the repo's message store.
func (r *Repo) Messages() (*MessageStore, error) {
	store := &MessageStore{byLangAndID: make(map[string]map[string]string)}

	root := filepath.Join(r.root, "messages")
	langs, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, err
	}

	for _, langEnt := range langs {
		if !langEnt.IsDir() {
			continue
		}
		lang := langEnt.Name()
		files, err := os.ReadDir(filepath.Join(root, lang))
		if err != nil {
			return nil, err
		}
		msgs := make(map[string]string)
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".txt") {
				continue
			}
			msgid := strings.TrimSuffix(f.Name(), ".txt")
			data, err := os.ReadFile(filepath.Join(root, lang, f.Name()))
			if err != nil {
				return nil, err
			}
			msgs[msgid] = string(data)
		}
		store.byLangAndID[lang] = msgs
	}
	return store, nil
}

// Render returns the templated message for (msgid, lang), substituting
// "{key}" placeholders from vars, falling back to English when the
// requested language has no entry.
func (s *MessageStore) Render(msgid, lang string, vars map[string]string) (string, bool) {
	tmpl, ok := s.byLangAndID[lang][msgid]
	if !ok {
		tmpl, ok = s.byLangAndID["en"][msgid]
	}
	if !ok {
		return "", false
	}
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{"+k+"}", v)
	}
	return tmpl, true
}

// knownIssuePrefix namespaces a message id as a known-issues note rather
// than a plain UI string. Since msgids are flat filenames, the package
// path is colon-joined rather than slash-joined: a manifest's
// known-issues key (spec.md §3, "{category}/{name} {version}") becomes
// "known-issues:{category}:{name}:{version}".
const knownIssuePrefix = "known-issues:"

// KnownIssueKeys returns the set of "{category}/{name} {version}" keys
// (Manifest.HasKnownIssues's contract) that carry a known-issues message.
func (s *MessageStore) KnownIssueKeys() map[string]bool {
	out := make(map[string]bool)
	for _, msgs := range s.byLangAndID {
		for msgid := range msgs {
			rest, ok := strings.CutPrefix(msgid, knownIssuePrefix)
			if !ok {
				continue
			}
			parts := strings.SplitN(rest, ":", 3)
			if len(parts) != 3 {
				continue
			}
			out[parts[0]+"/"+parts[1]+" "+parts[2]] = true
		}
	}
	return out
}
