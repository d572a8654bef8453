// Package data provides the durable collaborators of the acquisition core:
// the MySQL outcome/alert archive and the redis state mirror.
package data

import (
	"github.com/google/wire"
)

// ProviderSet is data providers. Repositories are provided from the biz
// ProviderSet where they are bound to their interfaces.
var ProviderSet = wire.NewSet(
	NewRedisClient,
	NewMySQLClient,
)
