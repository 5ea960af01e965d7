package spectral

import "math"

const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

// HzToMel converts frequency in Hz to mels, using the HTK formula when htk
// is set and the Slaney scale (linear below 1 kHz, log above) otherwise.
func HzToMel(hz float64, htk bool) float64 {
	if htk {
		return 2595.0 * math.Log10(1.0+hz/700.0)
	}
	if hz < melMinLogHz {
		return hz / melFSp
	}
	return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
}

// MelToHz inverts HzToMel.
func MelToHz(mel float64, htk bool) float64 {
	if htk {
		return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
	}
	if mel < melMinLogMel {
		return melFSp * mel
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
}

// HzToOcts converts Hz to octave numbers, where A440/16 (A0 for the
// standard reference) is octave 0.
func HzToOcts(hz, a440 float64) float64 {
	return math.Log2(hz / (a440 / 16))
}

// OctsToHz inverts HzToOcts.
func OctsToHz(octs, a440 float64) float64 {
	return (a440 / 16) * math.Exp2(octs)
}
