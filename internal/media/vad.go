package media

import (
	"encoding/binary"
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// trimSilence drops leading and trailing non-speech frames using WebRTC VAD.
// Frames between the first and last active frame are kept untouched. If no
// frame contains speech the result is empty.
//
// Disabled by default (media.trim_silence); kept behind config so quiet
// recordings are not cut off.
func trimSilence(samples []float32, sampleRate, mode int) ([]float32, error) {
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("create vad: %w", err)
	}
	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, fmt.Errorf("set vad mode: %w", err)
	}

	// 20ms frames, the middle of the sizes WebRTC VAD accepts.
	frameSize := sampleRate / 50
	if frameSize == 0 || len(samples) < frameSize {
		return samples, nil
	}

	first, last := -1, -1
	frameBytes := make([]byte, frameSize*2)
	for i := 0; i+frameSize <= len(samples); i += frameSize {
		encodeFrame(frameBytes, samples[i:i+frameSize])
		active, err := vad.Process(sampleRate, frameBytes)
		if err != nil {
			return nil, fmt.Errorf("vad process: %w", err)
		}
		if active {
			if first < 0 {
				first = i
			}
			last = i + frameSize
		}
	}
	if first < 0 {
		return nil, nil
	}
	return samples[first:last], nil
}

func encodeFrame(dst []byte, frame []float32) {
	for i, s := range frame {
		if s > 1 {
			s = 1
		}
		if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(s*32767)))
	}
}
