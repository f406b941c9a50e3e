package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameMap_RoundTrip(t *testing.T) {
	m := DefaultNameMap()

	assert.Equal(t, "ReadFile", m.ToWire("read_file"))
	assert.Equal(t, "read_file", m.FromWire("ReadFile"))
	assert.Equal(t, "read_file", m.FromWire(m.ToWire("read_file")))
}

func TestNameMap_Passthrough(t *testing.T) {
	m := DefaultNameMap()

	assert.Equal(t, "search_web", m.ToWire("search_web"))
	assert.Equal(t, "search_web", m.FromWire("search_web"))
	assert.Equal(t, "search_web", m.FromWire(m.ToWire("search_web")))
}

func TestNameMap_Custom(t *testing.T) {
	m := NewNameMap(map[string]string{
		"list_dir": "ListDir",
		"run_cmd":  "RunCommand",
	})

	assert.Equal(t, "ListDir", m.ToWire("list_dir"))
	assert.Equal(t, "run_cmd", m.FromWire("RunCommand"))
}
