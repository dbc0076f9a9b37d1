package deps

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/satchelhq/satchel/internal/auth"
	"github.com/satchelhq/satchel/internal/logger"
	"github.com/satchelhq/satchel/internal/notify"
	"github.com/satchelhq/satchel/internal/store/sqlite"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	Store       *sqlite.Store // users and bookmarks
	RedisClient *redis.Client // sessions, grants, event fanout
	Tokens      *auth.TokenIssuer
	Sessions    *auth.Store
	Provider    *auth.Provider
	Hub         *notify.Hub
	Publisher   notify.Publisher

	PublicURL string // externally reachable base URL, used in OAuth redirects

	AuthRateBurst     int // burst size for the /auth limiter
	AuthRatePerMinute int // sustained rate for the /auth limiter
}
