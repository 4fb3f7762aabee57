package forbiddenapis

import (
	"github.com/wagoodman/go-partybus"

	"github.com/anchore/forbiddenapis/forbiddenapis/logger"
	"github.com/anchore/forbiddenapis/internal/bus"
	"github.com/anchore/forbiddenapis/internal/log"
)

func SetLogger(l logger.Logger) {
	log.Log = l
}

func SetBus(b *partybus.Bus) {
	bus.Set(b)
}
