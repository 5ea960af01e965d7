package tonal

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

// A440 is the standard tuning reference.
const A440 = 440.0

var (
	noteNames   = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	pitchMap    = map[byte]float64{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}
	notePattern = regexp.MustCompile(`^([A-Ga-g])([#b!]*)([+-]?\d+)?([+-]\d+)?$`)
)

// HzToMidi converts a frequency to a (fractional) MIDI note number.
func HzToMidi(hz float64) float64 {
	return 12*(math.Log2(hz)-math.Log2(A440)) + 69
}

// MidiToHz converts a MIDI note number to Hz.
func MidiToHz(midi float64) float64 {
	return A440 * math.Exp2((midi-69)/12)
}

// NoteToMidi parses note names such as "C4", "C#3", "Db2", "A4+25" (cents)
// or "E" (octave 0). The result is not rounded when cents are given.
func NoteToMidi(note string) (float64, error) {
	m := notePattern.FindStringSubmatch(strings.TrimSpace(note))
	if m == nil {
		return 0, fmt.Errorf("%w: improper note format %q", common.ErrInvalidParameter, note)
	}

	value := pitchMap[strings.ToUpper(m[1])[0]]
	for _, acc := range m[2] {
		if acc == '#' {
			value++
		} else {
			value--
		}
	}

	octave := 0
	if m[3] != "" {
		octave, _ = strconv.Atoi(m[3])
	}
	value += 12 * float64(octave+1)

	if m[4] != "" {
		cents, _ := strconv.Atoi(m[4])
		value += float64(cents) * 0.01
	}
	return value, nil
}

// NoteToHz parses a note name and returns its frequency.
func NoteToHz(note string) (float64, error) {
	midi, err := NoteToMidi(note)
	if err != nil {
		return 0, err
	}
	return MidiToHz(midi), nil
}

// MidiToNote names the nearest note, e.g. 61 -> "C#4". With cents the
// deviation is appended, e.g. "A4+5".
func MidiToNote(midi float64, octave, cents bool) (string, error) {
	if cents && !octave {
		return "", fmt.Errorf("%w: cannot encode cents without octave", common.ErrUnsupportedCombination)
	}
	num := int(math.Round(midi))
	name := noteNames[((num%12)+12)%12]
	if octave {
		name += strconv.Itoa(int(math.Floor(float64(num)/12)) - 1)
	}
	if cents {
		c := int(math.Round(100 * (midi - float64(num))))
		name += fmt.Sprintf("%+02d", c)
	}
	return name, nil
}

// HzToNote names the note nearest to a frequency.
func HzToNote(hz float64, octave, cents bool) (string, error) {
	return MidiToNote(HzToMidi(hz), octave, cents)
}
