package venv

import "text/template"

// cmakeToolchainTmpl mirrors the shape of ruyi's upstream CMake toolchain
// file: point CMake at the shim compilers and the venv's sysroot.
var cmakeToolchainTmpl = template.Must(template.New("cmake").Parse(`# Generated by ruyi venv; do not edit.
set(CMAKE_SYSTEM_NAME Linux)
set(CMAKE_SYSTEM_PROCESSOR {{.Arch}})

set(CMAKE_C_COMPILER {{.TargetTuple}}-gcc)
set(CMAKE_CXX_COMPILER {{.TargetTuple}}-g++)
{{- if .Sysroot}}
set(CMAKE_SYSROOT {{.Sysroot}})
set(CMAKE_FIND_ROOT_PATH {{.Sysroot}})
set(CMAKE_FIND_ROOT_PATH_MODE_PROGRAM NEVER)
set(CMAKE_FIND_ROOT_PATH_MODE_LIBRARY ONLY)
set(CMAKE_FIND_ROOT_PATH_MODE_INCLUDE ONLY)
set(CMAKE_FIND_ROOT_PATH_MODE_PACKAGE ONLY)
{{- end}}
`))

// mesonCrossTmpl mirrors ruyi's Meson cross file layout.
var mesonCrossTmpl = template.Must(template.New("meson").Parse(`# Generated by ruyi venv; do not edit.
[binaries]
c = '{{.TargetTuple}}-gcc'
cpp = '{{.TargetTuple}}-g++'
ar = '{{.TargetTuple}}-ar'
strip = '{{.TargetTuple}}-strip'

[host_machine]
system = 'linux'
cpu_family = '{{.Arch}}'
cpu = '{{.Arch}}'
endian = 'little'
`))

// activateTmpl mirrors ruyi's bin/ruyi-activate shell script: prepend
// the venv's bin dir to PATH and set a prompt marker.
var activateTmpl = template.Must(template.New("activate").Parse(`#!/bin/sh
# Generated by ruyi venv; do not edit.
export RUYI_VENV="{{.RuyiVenv}}"
{{- if .RuyiVenvName}}
export RUYI_VENV_NAME="{{.RuyiVenvName}}"
{{- end}}
export PATH="$RUYI_VENV/bin:$PATH"
`))

type cmakeTmplData struct {
	Arch        string
	TargetTuple string
	Sysroot     string
}

type mesonTmplData struct {
	Arch        string
	TargetTuple string
}

type activateTmplData struct {
	RuyiVenv     string
	RuyiVenvName string
}
