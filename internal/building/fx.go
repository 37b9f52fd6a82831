package building

import (
	"github.com/smallbiznis/estatebill/internal/building/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("building.roster",
	fx.Provide(repository.Provide),
)
