package cli

import (
	"github.com/naveensnsgroups/ai-powered-mom/internal/audio"
	"github.com/naveensnsgroups/ai-powered-mom/internal/vad"
)

// voiceActivity runs local voice detection over the given chunks. It reports
// false when the chunks are not raw PCM or the detector cannot be built.
func voiceActivity(app *App, indices ...int) (vad.Result, bool) {
	processor, err := vad.NewProcessor(vad.Config{SampleRate: app.Config.Capture.SampleRate})
	if err != nil {
		return vad.Result{}, false
	}

	var pcm []byte
	for _, i := range indices {
		chunk, ok := app.Session.Chunk(i)
		if !ok || !audio.IsPCM(chunk.Encoding) {
			return vad.Result{}, false
		}
		pcm = append(pcm, chunk.Data...)
	}
	if len(pcm) == 0 {
		return vad.Result{}, false
	}

	return processor.Process(pcm), true
}

func chunkIndices(infos []audio.ChunkInfo) []int {
	indices := make([]int, 0, len(infos))
	for _, c := range infos {
		indices = append(indices, c.SequenceIndex)
	}
	return indices
}
