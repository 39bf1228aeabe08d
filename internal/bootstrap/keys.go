package bootstrap

import (
	"log/slog"

	"github.com/quantsignal/forecast-api/internal/data/cryptoutil"
)

// CreateKeyHasher builds the digest used to store API keys.
// An empty pepper is allowed but logged.
//
//nolint:ireturn // the service depends on the hasher abstraction.
func CreateKeyHasher(pepper string, logger *slog.Logger) cryptoutil.KeyHasher {
	if pepper == "" && logger != nil {
		logger.Warn("API_KEY_PEPPER is empty, storing unpeppered key digests")
	}
	return cryptoutil.NewSHA256Hasher(pepper)
}
