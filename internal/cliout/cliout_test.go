package cliout

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitWritesOneJSONLinePerCall(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf)

	require.NoError(t, e.Emit(KindPkgList, map[string]string{"name": "gcc-rv"}))
	require.NoError(t, e.Emit(KindChecksum, map[string]string{"sha256": "abc"}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	var env PorcelainEnvelope
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &env))
	require.Equal(t, KindPkgList, env.Ty)
}
