package audio

import "context"

// ProgressFunc receives the number of clip frames played so far.
type ProgressFunc func(played int)

// Player renders clips to an output. Play blocks until the clip has been
// played, ctx is cancelled, or the output fails. A paused gate holds
// playback in place.
type Player interface {
	Play(ctx context.Context, clip *Clip, gate *Gate, progress ProgressFunc) error
}
