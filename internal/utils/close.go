package utils

import (
	"io"

	"github.com/MrSnakeDoc/marks/internal/logger"
)

// Close closes c and ignores any error.
// Use for best-effort cleanup in defer, like response bodies.
func Close(c io.Closer) {
	_ = c.Close()
}

// CloseLogged closes a long-lived resource on shutdown and reports the
// outcome under name.
func CloseLogged(c io.Closer, name string, log logger.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close", logger.String("resource", name), logger.Error(err))
		return
	}
	log.Info("✅ closed cleanly", logger.String("resource", name))
}
