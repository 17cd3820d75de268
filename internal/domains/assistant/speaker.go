package assistant

import (
	"context"
	"fmt"

	"github.com/xpanvictor/hearken/pkg/Logger"
	"github.com/xpanvictor/hearken/pkg/dispatch"
	"github.com/xpanvictor/hearken/pkg/io/tts"
)

// SpeakHandler is the output worker's handler.
func SpeakHandler(engine tts.Engine, logger *Logger.Logger) dispatch.Handler[string] {
	if logger == nil {
		logger = Logger.Nop()
	}
	return func(ctx context.Context, phrase string) error {
		logger.Infof(">> %s", phrase)
		if err := engine.Speak(ctx, phrase); err != nil {
			return fmt.Errorf("%s: speaking %q: %w", engine.Name(), phrase, err)
		}
		return nil
	}
}
