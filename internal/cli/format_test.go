package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csound "github.com/aspect-build/csound-go"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRenderResultsGolden(t *testing.T) {
	results := []RenderResult{
		{
			Input: "pieces/drone.csd", Output: "build/drone.wav",
			SampleRate: 48000, Channels: 2, Frames: 6000000, Bytes: 24000044,
			PeakDBFS: -0.48, RMSDBFS: -14.2,
			Elapsed: 3250 * time.Millisecond, Exit: "score end",
		},
		{
			Input: "pieces/broken.csd",
			Error: "csound: compile: unspecified failure (-1)",
		},
		{
			Input: "pieces/click.csd", Output: "build/click.wav",
			SampleRate: 44100, Channels: 1, Frames: 22050, Bytes: 44144,
			PeakDBFS: -6.0206, RMSDBFS: -20,
			Elapsed: 80 * time.Millisecond, Exit: "score end",
		},
	}
	var buf bytes.Buffer
	require.NoError(t, writeRenderResults(&buf, results))
	newGoldie(t).Assert(t, "render_results", buf.Bytes())
}

func TestPlayResultGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePlayResult(&buf, PlayResult{
		Input:     "song.csd",
		Played:    61500 * time.Millisecond,
		Exit:      "stopped",
		Recording: "take.wav",
		Underruns: 3,
	}))
	newGoldie(t).Assert(t, "play_result", buf.Bytes())
}

func TestAudioDevicesGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeAudioDevices(&buf, []csound.AudioDevice{
		{Name: "Built-in Output", ID: "dac0", Module: "auhal", MaxNchnls: 2, IsOutput: true},
		{Name: "USB Interface", ID: "dac1", Module: "auhal", MaxNchnls: 8, IsOutput: true},
	}))
	newGoldie(t).Assert(t, "audio_devices", buf.Bytes())
}

func TestMidiDevicesGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeMidiDevices(&buf, []csound.MidiDevice{
		{Name: "Keystation 49", Interface: "ALSA", ID: "hw:1,0,0", Module: "alsaraw"},
	}))
	newGoldie(t).Assert(t, "midi_devices", buf.Bytes())
}

func TestOpcodesGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOpcodes(&buf, []csound.OpcodeDef{
		{Name: "oscili", OutTypes: "a", InTypes: "kkjo"},
		{Name: "outs", InTypes: "aa"},
		{Name: "chnset", InTypes: "kS"},
	}))
	newGoldie(t).Assert(t, "opcodes", buf.Bytes())
}

func TestEmptyDeviceLists(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeAudioDevices(&buf, nil))
	require.NoError(t, writeMidiDevices(&buf, nil))
	assert.Equal(t, "no audio devices\nno MIDI devices\n", buf.String())
}

func TestShortDuration(t *testing.T) {
	assert.Equal(t, "2 m 5 s", shortDuration(125*time.Second))
	assert.Equal(t, "1 h 1 m", shortDuration(time.Hour+time.Minute+time.Second))
	assert.Equal(t, "500 ms", shortDuration(500*time.Millisecond))
}

func TestRenderResultLength(t *testing.T) {
	assert.Equal(t, 2*time.Second, RenderResult{SampleRate: 44100, Frames: 88200}.Length())
	assert.Zero(t, RenderResult{Frames: 100}.Length())
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "pieces/song.wav", outputPath("pieces/song.csd", ""))
	assert.Equal(t, "build/song.wav", outputPath("pieces/song.csd", "build"))
	assert.Equal(t, "noext.wav", outputPath("noext", ""))
}
