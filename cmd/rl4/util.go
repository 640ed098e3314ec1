package main

import (
	"io"
	"os"

	"github.com/soynido/rl4/internal/cre"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func readAllStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

// replayLog rebuilds a *cre.State from an intervention log for `rl4
// replay`, independent of a live Engine.
func replayLog(path string) *cre.State {
	records := cre.NewLog(path).ReadAll()
	return cre.Replay(records, cre.DefaultWeights())
}
