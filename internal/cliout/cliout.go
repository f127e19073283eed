// Package cliout defines the porcelain JSON-lines contract spec.md §6
// describes: one tagged JSON object per line, replacing human-readable
// output when a command runs with --porcelain. The concrete rendering
// (human-readable text, TTY handling) is a CLI-surface concern left to
// cmd/ruyi; this package only carries the wire shape.
package cliout

import (
	"encoding/json"
	"io"
)

// PorcelainEnvelope is one line of porcelain output: Ty tags the payload
// kind ("<kind>-v1", e.g. "pkglist-v1", "installresult-v1"), Data carries
// the kind-specific body.
type PorcelainEnvelope struct {
	Ty   string `json:"ty"`
	Data any    `json:"data,omitempty"`
}

// Emitter writes a stream of porcelain envelopes as newline-delimited JSON.
type Emitter struct {
	w io.Writer
}

// NewEmitter wraps w for porcelain output.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes one tagged envelope as a single JSON line.
func (e *Emitter) Emit(ty string, data any) error {
	line, err := json.Marshal(PorcelainEnvelope{Ty: ty, Data: data})
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = e.w.Write(line)
	return err
}

// Package kinds recognized by this repo's cmd/ruyi, listed here since
// spec.md itself doesn't enumerate a fixed catalog beyond the "-v1" tag
// convention.
const (
	KindPkgList        = "pkglist-v1"
	KindInstallResult  = "installresult-v1"
	KindUninstallResult = "uninstallresult-v1"
	KindUpgradeList    = "upgradelist-v1"
	KindEntity         = "entity-v1"
	KindEntityList     = "entitylist-v1"
	KindVenvResult     = "venvresult-v1"
	KindChecksum       = "checksum-v1"
	KindError          = "error-v1"
)
