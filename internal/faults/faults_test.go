package faults

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultNetemArgs(t *testing.T) {
	tests := []struct {
		name  string
		fault Fault
		want  []string
	}{
		{"loss default", Fault{Kinds: []Kind{Loss}}, []string{"loss", "20%"}},
		{"loss custom", Fault{Kinds: []Kind{Loss}, LossPercent: 35}, []string{"loss", "35%"}},
		{"delay default", Fault{Kinds: []Kind{Delay}}, []string{"delay", "200ms", "50ms"}},
		{"delay custom", Fault{Kinds: []Kind{Delay}, DelayMs: 500, JitterMs: 100}, []string{"delay", "500ms", "100ms"}},
		{"duplicate", Fault{Kinds: []Kind{Duplicate}}, []string{"duplicate", "10%"}},
		{"corrupt", Fault{Kinds: []Kind{Corrupt}}, []string{"corrupt", "5%"}},
		{"combo", Fault{Kinds: []Kind{Delay, Loss}}, []string{"delay", "200ms", "50ms", "loss", "20%"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := tt.fault.netemArgs()
			require.NoError(t, err)
			assert.Equal(t, tt.want, args)
		})
	}
}

func TestFaultNetemArgsRejectsInvalid(t *testing.T) {
	_, err := Fault{}.netemArgs()
	assert.ErrorContains(t, err, "no kinds")

	_, err = Fault{Kinds: []Kind{"jitter"}}.netemArgs()
	assert.ErrorContains(t, err, `unknown fault kind "jitter"`)
}

func TestFaultName(t *testing.T) {
	assert.Equal(t, "loss", Fault{Kinds: []Kind{Loss}}.Name())
	assert.Equal(t, "delay+loss", Fault{Kinds: []Kind{Delay, Loss}}.Name())
}

func TestParseFault(t *testing.T) {
	fault, err := ParseFault("delay+loss")
	require.NoError(t, err)
	assert.Equal(t, []Kind{Delay, Loss}, fault.Kinds)

	fault, err = ParseFault("corrupt")
	require.NoError(t, err)
	assert.Equal(t, []Kind{Corrupt}, fault.Kinds)

	_, err = ParseFault("jitter")
	assert.ErrorContains(t, err, "unknown fault kind")

	_, err = ParseFault("")
	assert.Error(t, err)
}

func TestDefaultFaultsAllRender(t *testing.T) {
	for _, fault := range DefaultFaults() {
		args, err := fault.netemArgs()
		require.NoError(t, err, fault.Name())
		assert.NotEmpty(t, args)
	}
}

func TestTargetPickerCoversAllNodesWithoutRepeats(t *testing.T) {
	nodes := []string{"worker-0", "worker-1", "worker-2", "worker-3"}
	picker := newTargetPicker(nodes, 7)

	seen := map[string]int{}
	for len(seen) < len(nodes) {
		for _, n := range picker.pick() {
			seen[n]++
		}
	}

	for _, n := range nodes {
		assert.Equal(t, 1, seen[n], "node %s picked more than once before full coverage", n)
	}
}

func TestTargetPickerResetsAfterFullCoverage(t *testing.T) {
	picker := newTargetPicker([]string{"worker-0"}, 1)

	assert.Equal(t, []string{"worker-0"}, picker.pick())
	// Sole node already covered: coverage resets and it is picked again.
	assert.Equal(t, []string{"worker-0"}, picker.pick())
}

func TestTargetPickerReproducibleWithSeed(t *testing.T) {
	nodes := []string{"worker-0", "worker-1", "worker-2"}
	a := newTargetPicker(nodes, 42)
	b := newTargetPicker(nodes, 42)

	for i := 0; i < 6; i++ {
		assert.Equal(t, a.pick(), b.pick(), "pick %d diverged", i)
	}
}

func TestParseDefaultDevice(t *testing.T) {
	tests := []struct {
		out  string
		want string
	}{
		{"default via 10.0.0.1 dev br-ex proto dhcp metric 48", "br-ex"},
		{"default via 192.168.1.1 dev eth0\n10.0.0.0/24 dev eth1", "eth0"},
		{"10.0.0.0/24 via 10.0.0.1", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseDefaultDevice(tt.out), tt.out)
	}
}
