package di

import (
	"go.uber.org/zap"

	"studypace/application/commands/bus"
	querybus "studypace/application/queries/bus"
	"studypace/infrastructure/config"
	"studypace/interfaces/http/rest"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Persistence *Persistence
	CommandBus  *bus.CommandBus
	QueryBus    *querybus.QueryBus
	Router      *rest.Router
}

// Shutdown releases the container's resources
func (c *Container) Shutdown() error {
	err := c.Persistence.Close()
	_ = c.Logger.Sync()
	return err
}
