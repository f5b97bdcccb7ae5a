package badger

import (
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// badgerLoggerAdapter routes badger's warnings and errors into the bridge log.
// Info and debug chatter is dropped.
type badgerLoggerAdapter struct{}

var _ badgerdb.Logger = (*badgerLoggerAdapter)(nil)

func (b *badgerLoggerAdapter) Errorf(format string, args ...interface{}) {
	log.Error("badger", "message", strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *badgerLoggerAdapter) Warningf(format string, args ...interface{}) {
	log.Warn("badger", "message", strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *badgerLoggerAdapter) Infof(string, ...interface{}) {}

func (b *badgerLoggerAdapter) Debugf(string, ...interface{}) {}
