// Public domain.

package occprog

import (
	"go.uber.org/zap"

	"github.com/viscoinv/occam/internal/occerr"
)

// NewLogger builds the program logger: JSON to stderr, or console output
// in development mode.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		lvl, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, occerr.Wrap(occerr.ErrConfiguration, "occprog.NewLogger", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}
